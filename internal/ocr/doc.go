// Package ocr extracts text from uploaded images.
//
// Extractor never fails from the caller's point of view: it returns the
// recognised text trimmed of surrounding whitespace, NoTextDetected when the
// engine found nothing, or a string beginning with "Error in OCR:" when the
// engine could not run. Engines are pluggable; the Tesseract engine backed by
// gosseract is compiled in with the "tesseract" build tag and requires cgo.
package ocr
