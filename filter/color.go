package filter

// ColorCount is the number of color transforms in the catalog. Wire indices
// occupy at most 5 bits; the tile map codec narrows this to the active
// subset.
const ColorCount = 16

// Color is a reversible integer color transform. Forward maps an RGB
// triplet to the decorrelated YUV-like space the entropy stage codes;
// Inverse maps back. All arithmetic is modulo 256 with no rounding loss, so
// Inverse(Forward(rgb)) == rgb for every input.
type Color struct {
	Forward func(rgb [3]uint8) [3]uint8
	Inverse func(yuv [3]uint8) [3]uint8
}

// Colors is the fixed color transform catalog, indexed by wire ordinal.
var Colors = [ColorCount]Color{
	// 0: identity
	{
		Forward: func(v [3]uint8) [3]uint8 { return v },
		Inverse: func(v [3]uint8) [3]uint8 { return v },
	},
	// 1: subtract green, Y=G U=R-G V=B-G
	{
		Forward: func(v [3]uint8) [3]uint8 {
			return [3]uint8{v[1], v[0] - v[1], v[2] - v[1]}
		},
		Inverse: func(v [3]uint8) [3]uint8 {
			return [3]uint8{v[1] + v[0], v[0], v[2] + v[0]}
		},
	},
	// 2: Y=G U=B-G V=R-B
	{
		Forward: func(v [3]uint8) [3]uint8 {
			return [3]uint8{v[1], v[2] - v[1], v[0] - v[2]}
		},
		Inverse: func(v [3]uint8) [3]uint8 {
			b := v[1] + v[0]
			return [3]uint8{v[2] + b, v[0], b}
		},
	},
	// 3: Y=R U=G-R V=B-R
	{
		Forward: func(v [3]uint8) [3]uint8 {
			return [3]uint8{v[0], v[1] - v[0], v[2] - v[0]}
		},
		Inverse: func(v [3]uint8) [3]uint8 {
			return [3]uint8{v[0], v[1] + v[0], v[2] + v[0]}
		},
	},
	// 4: Y=R U=B-R V=G-B
	{
		Forward: func(v [3]uint8) [3]uint8 {
			return [3]uint8{v[0], v[2] - v[0], v[1] - v[2]}
		},
		Inverse: func(v [3]uint8) [3]uint8 {
			b := v[1] + v[0]
			return [3]uint8{v[0], v[2] + b, b}
		},
	},
	// 5: Y=B U=R-B V=G-B
	{
		Forward: func(v [3]uint8) [3]uint8 {
			return [3]uint8{v[2], v[0] - v[2], v[1] - v[2]}
		},
		Inverse: func(v [3]uint8) [3]uint8 {
			return [3]uint8{v[1] + v[0], v[2] + v[0], v[0]}
		},
	},
	// 6: Y=B U=G-B V=R-G
	{
		Forward: func(v [3]uint8) [3]uint8 {
			return [3]uint8{v[2], v[1] - v[2], v[0] - v[1]}
		},
		Inverse: func(v [3]uint8) [3]uint8 {
			g := v[1] + v[0]
			return [3]uint8{v[2] + g, g, v[0]}
		},
	},
	// 7: Y=G U=R-G V=B-R
	{
		Forward: func(v [3]uint8) [3]uint8 {
			return [3]uint8{v[1], v[0] - v[1], v[2] - v[0]}
		},
		Inverse: func(v [3]uint8) [3]uint8 {
			r := v[1] + v[0]
			return [3]uint8{r, v[0], v[2] + r}
		},
	},
	// 8: Y=R U=G-R V=B-G
	{
		Forward: func(v [3]uint8) [3]uint8 {
			return [3]uint8{v[0], v[1] - v[0], v[2] - v[1]}
		},
		Inverse: func(v [3]uint8) [3]uint8 {
			g := v[1] + v[0]
			return [3]uint8{v[0], g, v[2] + g}
		},
	},
	// 9: Y=B U=R-B V=G-R
	{
		Forward: func(v [3]uint8) [3]uint8 {
			return [3]uint8{v[2], v[0] - v[2], v[1] - v[0]}
		},
		Inverse: func(v [3]uint8) [3]uint8 {
			r := v[1] + v[0]
			return [3]uint8{r, v[2] + r, v[0]}
		},
	},
	// 10: YCoCg-R lifting
	{
		Forward: func(v [3]uint8) [3]uint8 {
			co := v[0] - v[2]
			t := v[2] + co>>1
			cg := v[1] - t
			y := t + cg>>1
			return [3]uint8{y, co, cg}
		},
		Inverse: func(v [3]uint8) [3]uint8 {
			t := v[0] - v[2]>>1
			g := v[2] + t
			b := t - v[1]>>1
			r := b + v[1]
			return [3]uint8{r, g, b}
		},
	},
	// 11: reversible color transform (JPEG 2000 RCT lifting)
	{
		Forward: func(v [3]uint8) [3]uint8 {
			u := v[0] - v[1]
			w := v[2] - v[1]
			y := v[1] + (u+w)>>2
			return [3]uint8{y, u, w}
		},
		Inverse: func(v [3]uint8) [3]uint8 {
			g := v[0] - (v[1]+v[2])>>2
			return [3]uint8{v[1] + g, g, v[2] + g}
		},
	},
	// 12: Y=G U=R-B V=B-G
	{
		Forward: func(v [3]uint8) [3]uint8 {
			return [3]uint8{v[1], v[0] - v[2], v[2] - v[1]}
		},
		Inverse: func(v [3]uint8) [3]uint8 {
			b := v[2] + v[0]
			return [3]uint8{v[1] + b, v[0], b}
		},
	},
	// 13: Y=R U=B-G V=G-R
	{
		Forward: func(v [3]uint8) [3]uint8 {
			return [3]uint8{v[0], v[2] - v[1], v[1] - v[0]}
		},
		Inverse: func(v [3]uint8) [3]uint8 {
			g := v[2] + v[0]
			return [3]uint8{v[0], g, v[1] + g}
		},
	},
	// 14: Y=B U=G-R V=R-B
	{
		Forward: func(v [3]uint8) [3]uint8 {
			return [3]uint8{v[2], v[1] - v[0], v[0] - v[2]}
		},
		Inverse: func(v [3]uint8) [3]uint8 {
			r := v[2] + v[0]
			return [3]uint8{r, v[1] + r, v[0]}
		},
	},
	// 15: Y=G U=R-G V=B-(R+G)/2
	{
		Forward: func(v [3]uint8) [3]uint8 {
			return [3]uint8{v[1], v[0] - v[1], v[2] - uint8((int(v[0])+int(v[1]))>>1)}
		},
		Inverse: func(v [3]uint8) [3]uint8 {
			r := v[1] + v[0]
			b := v[2] + uint8((int(r)+int(v[0]))>>1)
			return [3]uint8{r, v[0], b}
		},
	},
}
