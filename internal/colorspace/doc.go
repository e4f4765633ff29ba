// Package colorspace implements the stateless per-pixel color transforms
// applied to uploaded images: grayscale, sepia, invert, CMYK, HSV and HLS
// conversions, multiplicative HSV adjustment and saturation enhancement.
//
// All 8-bit HSV and HLS arithmetic follows the integer and float32 routines
// used by OpenCV so that channel values match images produced elsewhere with
// cv2.cvtColor. HSV and HLS buffers are returned packed into an *image.NRGBA
// with the three channels stored in the R, G and B slots in conversion order.
// CMYK is returned as *image.CMYK; Storable packs it the same way before it is
// written so that the stored bytes are the C, M and Y channels.
//
// Apply is the strict form and reports every failure. Transformer is the
// best-effort form used when a batch of transforms runs for one upload: it
// logs processing failures and hands back the unmodified source image.
package colorspace
