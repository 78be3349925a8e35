package node

import (
	"math"

	"github.com/Carmen-Shannon/oxy-scene/common"
)

// PickColor encodes a pick index as a colour, little-endian over the red, green and blue bytes.
func PickColor(index int) common.RGB {
	return common.RGB{
		R: float32(index&0xff) / 255,
		G: float32((index>>8)&0xff) / 255,
		B: float32((index>>16)&0xff) / 255,
	}
}

// PickIndex decodes a colour written by PickColor.
func PickIndex(c common.RGB) int {
	return int(toByte(c.R)) + int(toByte(c.G))*256 + int(toByte(c.B))*65536
}

// PixelIndex decodes a pixel read back from the pick target. 0 means nothing was picked.
func PixelIndex(px [4]byte) int {
	return int(px[0]) + int(px[1])*256 + int(px[2])*65536
}

func toByte(v float32) byte {
	return byte(math.Round(float64(min(max(v, 0), 1) * 255)))
}
