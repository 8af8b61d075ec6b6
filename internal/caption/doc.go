// Package caption builds the text posted alongside each image from the batch
// template, the image file name, and the per-job override.
package caption
