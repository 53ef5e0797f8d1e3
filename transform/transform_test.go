package transform

import "testing"

func TestForwardConstantBlockIsDC(t *testing.T) {
	const size = 8
	src := make([]int32, size*size)
	for i := range src {
		src[i] = 128
	}
	tmp := make([]int32, size*size)
	dst := make([]int32, size*size)
	Forward2D(dst, src, tmp, size, false, 9, 12)

	for i := 1; i < len(dst); i++ {
		if dst[i] != 0 {
			t.Fatalf("expected only the DC coefficient to be nonzero, dst[%d] = %d", i, dst[i])
		}
	}
	if dst[0] == 0 {
		t.Fatal("expected a nonzero DC coefficient for a constant input block")
	}
}

// TestQuantParamsMatchStandardFormula checks quantParams against values
// computed independently from the standard's qbits/round formulas
// (QUANT_SHIFT=14, MaxTRDynRange=15), not re-derived from the
// production code under test.
func TestQuantParamsMatchStandardFormula(t *testing.T) {
	cases := []struct {
		qp        int32
		log2Size  int
		wantScale int32
		wantShift uint
		wantRound int64
	}{
		// qp=32: qp%6=2 -> scale 20560, qp/6=5; log2Size=3 ->
		// iTransShift=15-8-3=4; shift=14+5+4=23; round=171<<14.
		{qp: 32, log2Size: 3, wantScale: 20560, wantShift: 23, wantRound: 171 << 14},
		// qp=0: qp%6=0 -> scale 26214, qp/6=0; log2Size=2 ->
		// iTransShift=15-8-2=5; shift=14+0+5=19; round=171<<10.
		{qp: 0, log2Size: 2, wantScale: 26214, wantShift: 19, wantRound: 171 << 10},
		// qp=6: qp%6=0 -> scale 26214, qp/6=1; log2Size=4 ->
		// iTransShift=15-8-4=3; shift=14+1+3=18; round=171<<9.
		{qp: 6, log2Size: 4, wantScale: 26214, wantShift: 18, wantRound: 171 << 9},
	}
	for _, c := range cases {
		scale, shift, round := quantParams(c.qp, c.log2Size)
		if scale != c.wantScale || shift != c.wantShift || round != c.wantRound {
			t.Errorf("quantParams(%d, %d) = (%d, %d, %d), want (%d, %d, %d)",
				c.qp, c.log2Size, scale, shift, round,
				c.wantScale, c.wantShift, c.wantRound)
		}
	}
}

// TestDequantParamsMatchStandardFormula checks dequantParams against
// values computed independently from the standard's iScale/iShift
// formulas (IQUANT_SHIFT=20, QUANT_SHIFT=14).
func TestDequantParamsMatchStandardFormula(t *testing.T) {
	cases := []struct {
		qp        int32
		log2Size  int
		wantScale int64
		wantShift uint
		wantRound int64
	}{
		// qp=32: qp%6=2 -> InvQuantScales[2]=51, qp/6=5 -> 51<<5=1632;
		// log2Size=3 -> iTransShift=4; shift=20-14-4=2; round=1<<1=2.
		{qp: 32, log2Size: 3, wantScale: 1632, wantShift: 2, wantRound: 2},
		// qp=0: qp%6=0 -> InvQuantScales[0]=40, qp/6=0 -> 40<<0=40;
		// log2Size=2 -> iTransShift=5; shift=20-14-5=1; round=1<<0=1.
		{qp: 0, log2Size: 2, wantScale: 40, wantShift: 1, wantRound: 1},
		// qp=6: qp%6=0 -> 40, qp/6=1 -> 40<<1=80; log2Size=4 ->
		// iTransShift=3; shift=20-14-3=3; round=1<<2=4.
		{qp: 6, log2Size: 4, wantScale: 80, wantShift: 3, wantRound: 4},
	}
	for _, c := range cases {
		scale, shift, round := dequantParams(c.qp, c.log2Size)
		if scale != c.wantScale || shift != c.wantShift || round != c.wantRound {
			t.Errorf("dequantParams(%d, %d) = (%d, %d, %d), want (%d, %d, %d)",
				c.qp, c.log2Size, scale, shift, round,
				c.wantScale, c.wantShift, c.wantRound)
		}
	}
}

// TestQuantizeDequantizeRoundTripsNearOriginal exercises the full
// transform/quantize/dequantize/inverse-transform round trip. The
// quantization step at qp=32, size=8 (a coefficient-domain step of
// roughly 2^23/20560 = ~408, half-step ~204) is designed to recover
// within a few DC-normalization units (2^6) of the original residual
// once spread through the inverse transform; a correct implementation
// lands within single digits, while either bug this test was written
// against (the qbits sign flip, or a broken dequant shift) moves the
// result by orders of magnitude or entire powers of two.
func TestQuantizeDequantizeRoundTripsNearOriginal(t *testing.T) {
	c := NewCodec(32)
	const size = 8
	src := make([]int32, size*size)
	for i := range src {
		src[i] = int32(i%17) - 8
	}
	tmp := make([]int32, size*size)
	levels := make([]int32, size*size)
	nonZero := c.ResidualDCT(levels, src, tmp, size, false)
	if !nonZero {
		t.Fatal("expected nonzero coefficients for a non-constant residual")
	}

	recon := make([]int32, size*size)
	c.InverseQuantDCT(recon, levels, tmp, size, false)
	const tolerance = 16
	for i, v := range recon {
		if d := v - src[i]; d < -tolerance || d > tolerance {
			t.Fatalf("recon[%d] = %d, src[%d] = %d, diff %d exceeds tolerance %d", i, v, i, src[i], d, tolerance)
		}
	}
}

func TestZeroResidualQuantizesToAllZero(t *testing.T) {
	c := NewCodec(32)
	const size = 4
	src := make([]int32, size*size)
	tmp := make([]int32, size*size)
	levels := make([]int32, size*size)
	if nonZero := c.ResidualDCT(levels, src, tmp, size, true); nonZero {
		t.Fatal("expected an all-zero residual to quantize to all-zero levels")
	}
}
