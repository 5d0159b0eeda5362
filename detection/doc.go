// Package detection finds blobs, Haar-cascade objects, lines and circles in
// an imaging.Image.
//
// Every detector takes the scratch arena as its first argument and a params
// struct describing the region of interest and tuning. Results are ordinary Go
// slices owned by the caller; all intermediate tables live in the arena and are
// released before the detector returns, whether it succeeds or not.
//
// # Detectors
//
//   - FindBlobs: 4-connected region fill over threshold-matching pixels, with
//     moments, corner samples and optional merging of nearby blobs
//   - FindObjects: Viola-Jones style cascade evaluated on windowed integral
//     images at a sequence of growing window scales
//   - FindLines: Sobel gradients voting into a Hough accumulator over 180
//     one-degree angles, clipped back to segments inside the ROI
//   - FindCircles: Sobel gradients voting along the gradient direction, one
//     accumulator pass per radius
//
// # Call Contract
//
// Each detector follows the same sequence:
//
//  1. The ROI is resolved against the image. A zero Rect means the whole
//     image; anything not fully inside fails with imaging.ErrWrongROI.
//  2. Parameters are validated. Bad values fail with
//     imaging.ErrInvalidParameter before any pixel is read.
//  3. The arena is asked for the detector's full scratch size up front, so
//     exhaustion fails with imaging.ErrOutOfMemory before scanning begins.
//     The exported *ScratchSize functions report those sizes.
//  4. Scratch is pushed above a mark and released on return.
//
// # Coordinate System
//
// Results are in image coordinates with the origin at the top-left, X growing
// rightward and Y downward. Rectangles are half-open: X..X+W-1 by Y..Y+H-1.
//
// # Ordering
//
// Blobs come out in scan order of their seed pixel, objects in scale then scan
// order, and lines and circles sorted by descending magnitude with ties kept
// in discovery order.
//
// # Concurrency
//
// The detectors hold no package state. Calls sharing one arena must not run
// concurrently; package engine serialises them for callers that need that.
// CascadeCache is safe for concurrent use.
package detection
