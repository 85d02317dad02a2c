// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

// Im2Col unfolds the image x, of shape (channels, xh, xw), into the column matrix cols of shape
// (channels*kh*kw, yh*yw): row (c*kh*kw + i*kw + j) holds, for each output position (oy, ox), the value
// x[c, oy*stride-pad+i*dilation, ox*stride-pad+j*dilation], or 0 if out of bounds.
//
// cols must have at least channels*kh*kw*yh*yw elements; it is fully overwritten.
func Im2Col(x []float32, channels, xh, xw, kh, kw int, params ConvParams, yh, yw int, cols []float32) {
	outSize := yh * yw
	row := 0
	for c := range channels {
		image := x[c*xh*xw : (c+1)*xh*xw]
		for i := range kh {
			for j := range kw {
				dst := cols[row*outSize : (row+1)*outSize]
				row++
				for oy := range yh {
					iy := oy*params.Stride - params.Pad + i*params.Dilation
					line := dst[oy*yw : (oy+1)*yw]
					if iy < 0 || iy >= xh {
						clear(line)
						continue
					}
					src := image[iy*xw : (iy+1)*xw]
					for ox := range yw {
						ix := ox*params.Stride - params.Pad + j*params.Dilation
						if ix < 0 || ix >= xw {
							line[ox] = 0
						} else {
							line[ox] = src[ix]
						}
					}
				}
			}
		}
	}
}

// Col2Im is the adjoint of Im2Col: it adds each value of cols, of shape (channels*kh*kw, yh*yw), to the
// image position it was unfolded from. Overlapping contributions accumulate and out of bounds positions
// are dropped.
//
// x, of shape (channels, xh, xw), is accumulated into: clear it first for a plain col2im.
func Col2Im(cols []float32, channels, xh, xw, kh, kw int, params ConvParams, yh, yw int, x []float32) {
	outSize := yh * yw
	row := 0
	for c := range channels {
		image := x[c*xh*xw : (c+1)*xh*xw]
		for i := range kh {
			for j := range kw {
				src := cols[row*outSize : (row+1)*outSize]
				row++
				for oy := range yh {
					iy := oy*params.Stride - params.Pad + i*params.Dilation
					if iy < 0 || iy >= xh {
						continue
					}
					dst := image[iy*xw : (iy+1)*xw]
					line := src[oy*yw : (oy+1)*yw]
					for ox, v := range line {
						ix := ox*params.Stride - params.Pad + j*params.Dilation
						if ix >= 0 && ix < xw {
							dst[ix] += v
						}
					}
				}
			}
		}
	}
}
