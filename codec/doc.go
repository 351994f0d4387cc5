// Package codec converts between scalar values and the colour encodings the
// evaluation pipeline writes to 8-bit render targets.
//
// Two encodings exist:
//
//   - Packing spreads a normalized value over the R, G, B (and A) bytes of a
//     pixel so it can travel through an RGBA8 image and be decoded later with
//     a dot product.
//   - Class breaks map value intervals to colours. A ColorRamp is packed into
//     a 256x1 float texture, one node per texel, and searched with a bounded
//     binary search in the fragment program.
package codec
