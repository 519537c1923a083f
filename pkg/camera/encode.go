package camera

import (
	"fmt"
	"image"
	"image/jpeg"

	"github.com/valyala/bytebufferpool"
)

// pooledJPEG is an owned buffer backed by the shared byte buffer pool.
type pooledJPEG struct {
	bb *bytebufferpool.ByteBuffer
}

func (p *pooledJPEG) Bytes() []byte {
	if p.bb == nil {
		return nil
	}
	return p.bb.B
}

func (p *pooledJPEG) Free() {
	if p.bb == nil {
		return
	}
	bytebufferpool.Put(p.bb)
	p.bb = nil
}

// encodeRGBA compresses a raw RGBA buffer into a pooled JPEG.
func encodeRGBA(buf *Buffer, quality int) (OwnedBuffer, error) {
	if buf == nil || buf.Format != PixelFormatRGBA {
		return nil, fmt.Errorf("unsupported pixel format for software encode")
	}
	if len(buf.Data) < buf.Width*buf.Height*4 {
		return nil, fmt.Errorf("short raw buffer: %d bytes for %dx%d", len(buf.Data), buf.Width, buf.Height)
	}
	img := &image.RGBA{
		Pix:    buf.Data,
		Stride: buf.Width * 4,
		Rect:   image.Rect(0, 0, buf.Width, buf.Height),
	}
	bb := bytebufferpool.Get()
	if err := jpeg.Encode(bb, img, &jpeg.Options{Quality: quality}); err != nil {
		bytebufferpool.Put(bb)
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return &pooledJPEG{bb: bb}, nil
}
