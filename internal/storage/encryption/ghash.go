package encryption

import "encoding/binary"

// ghash is an incremental GHASH over GF(2^128) as defined in NIST SP 800-38D.
// crypto/cipher only exposes one-shot AEAD sealing, so the streaming cipher computes
// the GCM authentication tag itself and relies on CTR mode for the keystream.
type ghash struct {
	hHi, hLo uint64
	yHi, yLo uint64
	buf      [16]byte
	nbuf     int
	length   uint64
}

func newGHASH(h []byte) *ghash {
	return &ghash{
		hHi: binary.BigEndian.Uint64(h[:8]),
		hLo: binary.BigEndian.Uint64(h[8:16]),
	}
}

// Write absorbs ciphertext bytes.
func (g *ghash) Write(p []byte) {
	g.length += uint64(len(p))
	for len(p) > 0 {
		if g.nbuf == 0 && len(p) >= 16 {
			g.block(p[:16])
			p = p[16:]
			continue
		}
		n := copy(g.buf[g.nbuf:], p)
		g.nbuf += n
		p = p[n:]
		if g.nbuf == 16 {
			g.block(g.buf[:])
			g.nbuf = 0
		}
	}
}

// Sum pads the pending partial block, absorbs the length block (no additional data)
// and returns the digest. The ghash must not be written to afterwards.
func (g *ghash) Sum() [16]byte {
	if g.nbuf > 0 {
		for i := g.nbuf; i < 16; i++ {
			g.buf[i] = 0
		}
		g.block(g.buf[:])
		g.nbuf = 0
	}

	var lengths [16]byte
	binary.BigEndian.PutUint64(lengths[8:], g.length*8)
	g.block(lengths[:])

	var out [16]byte
	binary.BigEndian.PutUint64(out[:8], g.yHi)
	binary.BigEndian.PutUint64(out[8:], g.yLo)
	return out
}

func (g *ghash) block(b []byte) {
	g.yHi ^= binary.BigEndian.Uint64(b[:8])
	g.yLo ^= binary.BigEndian.Uint64(b[8:16])
	g.yHi, g.yLo = gfMul(g.yHi, g.yLo, g.hHi, g.hLo)
}

// gfMul multiplies x by y in GF(2^128) with the GCM bit order, where bit 0 is the most
// significant bit of the first byte. It runs in constant time: every secret bit selects
// through a mask, never a branch.
func gfMul(xHi, xLo, yHi, yLo uint64) (uint64, uint64) {
	var zHi, zLo uint64
	vHi, vLo := yHi, yLo
	for i := 0; i < 64; i++ {
		zHi, zLo, vHi, vLo = gfMulStep(xHi>>uint(63-i)&1, zHi, zLo, vHi, vLo)
	}
	for i := 0; i < 64; i++ {
		zHi, zLo, vHi, vLo = gfMulStep(xLo>>uint(63-i)&1, zHi, zLo, vHi, vLo)
	}
	return zHi, zLo
}

// gfMulStep adds v to z when bit is 1 and advances v by one reduction step.
func gfMulStep(bit, zHi, zLo, vHi, vLo uint64) (uint64, uint64, uint64, uint64) {
	m := -bit
	zHi ^= vHi & m
	zLo ^= vLo & m

	lsb := vLo & 1
	vLo = vLo>>1 | vHi<<63
	vHi = vHi>>1 ^ 0xe100000000000000&-lsb
	return zHi, zLo, vHi, vLo
}
