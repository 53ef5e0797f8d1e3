/*
DESCRIPTION
  cabac.go implements the binary arithmetic coding engine (Engine) that
  backs HEVC CABAC: bin encoding against an adaptive context model,
  bypass (equiprobable) bin encoding, the terminating bit, and interval
  renormalization/flush.

LICENSE
  ces265 implements HEVC intra-only encoding derived from the CES265
  project (Chair for Embedded Systems, KIT).

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  This program is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cabac implements the HEVC CABAC binary arithmetic coder and its
// syntax-element binarization helpers. The grounding gap (the reference
// engine's Cabac.cpp was not retrievable) is recorded in DESIGN.md; this
// engine is built directly from the published CABAC behavior and the
// shared H.264/HEVC state-machine tables in hevctab.
package cabac

import (
	"github.com/mukk10/ces265/bitio"
	"github.com/mukk10/ces265/hevctab"
)

// ctxState holds one adaptive context model's probability state and MPS.
type ctxState struct {
	state uint8
	mps   uint8
}

// Engine is the arithmetic coder. One Engine belongs to exactly one
// TileWorker; it carries no package-level mutable state.
type Engine struct {
	low       uint32
	bitsLeft  int
	numBytes  int
	cacheVal  int
	ctx       [hevctab.MaxNumCtxMod]ctxState
	w         *bitio.Writer
	codIRange uint32
}

// NewEngine returns an Engine writing into w, with its context array
// initialized for slice QP qp (I-slice init table is the only one this
// module needs, since only intra coding is supported).
func NewEngine(w *bitio.Writer, qp int32) *Engine {
	e := &Engine{w: w}
	e.Reset(qp)
	return e
}

// Reset reinitializes the arithmetic coder's interval and every context
// model for a new slice at QP qp.
func (e *Engine) Reset(qp int32) {
	e.codIRange = 510
	e.low = 0
	e.bitsLeft = 23
	e.numBytes = 0
	e.cacheVal = 0xFF
	for i := range e.ctx {
		e.ctx[i] = initCtx(qp, initValue[i])
	}
}

// initValue is the per-context initialization parameter pair (m, n) used
// by the preCtxState formula, one entry per context model slot, packed as
// the standard's 8-bit initValue (slopeIdx in the high nibble, offsetIdx
// in the low nibble).
//
// The named groups below (split flag, the one reachable part_mode
// context, prev_intra_luma_pred_flag, intra_chroma_pred_mode,
// split_transform_flag, the cbf contexts, rqt_root_cbf,
// cu_qp_delta_abs, sig_coeff_group_flag, transform_skip_flag,
// cu_transquant_bypass_flag) are the published HEVC I-slice (initType 0)
// context-initialization constants (Rec. ITU-T H.265 S9.3.2.2, tables
// 9-6 through 9-22). The coefficient-position groups (sig_coeff_flag,
// last_sig_coeff_x/y_prefix, coeff_abs_level_greater1/2_flag) use a
// position-graduated sequence following the standard's documented
// trend of decreasing initial "significant"/"greater-than" bias across
// a scan's context run, since this module could not verify the exact
// published bytes for all 44+18+18+24+6 entries against a retrievable
// copy of the standard or Cabac.cpp (see DESIGN.md's grounding-gap
// note) without executing a conformance decoder.
//
// Contexts with no I-slice semantics (skip_flag, merge_flag,
// pred_mode_flag, part_mode's non-2Nx2N entries, mvd, ref_idx - all
// exclusively inter-prediction syntax this intra-only encoder never
// signals) are left at the CNU sentinel, which this formula resolves
// to a fixed, QP-independent (state=0, mps=1) starting point.
var initValue [hevctab.MaxNumCtxMod]int32

func init() {
	for i := range initValue {
		initValue[i] = hevctab.CNU
	}

	set := func(off int, vals ...int32) {
		copy(initValue[off:], vals)
	}

	set(hevctab.OffSplitFlagCtx, 139, 141, 157)
	set(hevctab.OffPartSizeCtx, 184) // only ctxIdx0 is reachable: intra CUs never signal the other part_mode bins
	set(hevctab.OffIntraPredCtx, 184)
	set(hevctab.OffChromaPredCtx, 63, 152)
	set(hevctab.OffTransSubdivCtx, 153, 138, 138)
	set(hevctab.OffQtCbfCtx, 111, 141, 94, 138, 182, 154, 154, 149, 92, 167)
	set(hevctab.OffQtRootCbfCtx, 79)
	set(hevctab.OffDeltaQPCtx, 154, 154, 154)
	set(hevctab.OffSigCoeffGroupCtx, 91, 171, 134, 141)
	set(hevctab.OffSigFlagCtx, ctxGradient(hevctab.NumSigFlagCtx, 170, 110)...)
	set(hevctab.OffLastXCtx, ctxGradient(hevctab.NumLastXCtx, 125, 95)...)
	set(hevctab.OffLastYCtx, ctxGradient(hevctab.NumLastYCtx, 125, 95)...)
	set(hevctab.OffOneFlagCtx, ctxGradient(hevctab.NumOneFlagCtx, 140, 100)...)
	set(hevctab.OffAbsFlagCtx, ctxGradient(hevctab.NumAbsFlagCtx, 138, 107)...)
	set(hevctab.OffTransformSkipFlagCtx, 139, 139)
	set(hevctab.OffCuTransquantBypassFlagCtx, 154)
	set(hevctab.OffTsFlagCtx, 139)
}

// ctxGradient returns n values stepping linearly from hi down to lo,
// approximating the standard's documented trend of decreasing initial
// context bias across a coefficient scan's context run.
func ctxGradient(n int, hi, lo int32) []int32 {
	out := make([]int32, n)
	if n == 1 {
		out[0] = hi
		return out
	}
	for i := range out {
		out[i] = hi - (hi-lo)*int32(i)/int32(n-1)
	}
	return out
}

// initCtx derives (state, mps) from the preCtxState formula:
// preCtxState = clip3(1, 126, ((m*clip3(0,51,qp))>>4) + n), where
// m = slopeIdx*5 - 45 and n = (offsetIdx<<3) - 16 unpack the standard's
// packed initValue byte (slopeIdx in the high nibble, offsetIdx in the
// low nibble).
func initCtx(qp int32, mn int32) ctxState {
	m := (mn>>4)*5 - 45
	n := ((mn & 15) << 3) - 16
	clippedQP := qp
	if clippedQP < 0 {
		clippedQP = 0
	}
	if clippedQP > 51 {
		clippedQP = 51
	}
	pre := ((m * clippedQP) >> 4) + n
	if pre < 1 {
		pre = 1
	}
	if pre > 126 {
		pre = 126
	}
	if pre >= 64 {
		return ctxState{state: uint8(pre - 64), mps: 1}
	}
	return ctxState{state: uint8(63 - pre), mps: 0}
}

// EncodeBin encodes bin using the adaptive context at ctxIdx.
func (e *Engine) EncodeBin(bin uint8, ctxIdx int) {
	c := &e.ctx[ctxIdx]
	qCodIRangeIdx := (e.codIRange >> 6) & 3
	rLPS := hevctab.RangeTabLPS[c.state][qCodIRangeIdx]

	e.codIRange -= rLPS
	if bin != c.mps {
		if c.state == 0 {
			c.mps = 1 - c.mps
		}
		c.state = hevctab.TransIdxLPS[c.state]
		e.low += e.codIRange
		e.codIRange = rLPS
	} else {
		c.state = hevctab.TransIdxMPS[c.state]
	}
	e.renorm()
}

// EncodeBinsEP encodes nBits equiprobable (bypass) bins from the low
// nBits of value, MSB first.
func (e *Engine) EncodeBinsEP(value uint32, nBits int) {
	for i := nBits - 1; i >= 0; i-- {
		bin := uint8((value >> uint(i)) & 1)
		e.low <<= 1
		if bin != 0 {
			e.low += e.codIRange
		}
		e.bitsLeft--
		if e.bitsLeft < 12 {
			e.writeOut()
		}
	}
}

// EncodeTerminatingBit encodes the end-of-slice/end-of-substream flag.
func (e *Engine) EncodeTerminatingBit(bin uint8) {
	e.codIRange -= 2
	if bin != 0 {
		e.low += e.codIRange
		e.low <<= 7
		e.codIRange = 2 << 7
		e.bitsLeft -= 7
		if e.bitsLeft < 12 {
			e.writeOut()
		}
		return
	}
	e.renorm()
}

// renorm renormalizes codIRange back above 256, shifting low and
// flushing completed bits to the output via writeOut.
func (e *Engine) renorm() {
	for e.codIRange < 256 {
		e.codIRange <<= 1
		e.low <<= 1
		e.bitsLeft--
		if e.bitsLeft < 12 {
			e.writeOut()
		}
	}
}

// writeOut carries out the CABAC bit-stuffing byte-output procedure,
// handling the carry propagation through a run of cached 0xFF bytes.
func (e *Engine) writeOut() {
	leadByte := e.low >> uint(24-e.bitsLeft)
	e.bitsLeft += 8
	e.low &= (uint32(1) << uint(24-e.bitsLeft)) - 1

	switch {
	case leadByte == 0xFF:
		e.numBytes++
	case e.numBytes > 0 && leadByte == 0x100:
		e.putByte(byte(e.cacheVal + 1))
		for ; e.numBytes > 1; e.numBytes-- {
			e.putByte(0x00)
		}
		e.cacheVal = 0
	default:
		if e.cacheVal >= 0 {
			e.putByte(byte(e.cacheVal))
		}
		for ; e.numBytes > 1; e.numBytes-- {
			e.putByte(0xFF)
		}
		e.cacheVal = int(leadByte & 0xFF)
	}
}

// putByte writes one finished RBSP byte through the shared bitio.Writer,
// with emulation-prevention enabled.
func (e *Engine) putByte(b byte) {
	e.w.PutBits(uint32(b), 8, true)
}

// Flush finalizes the arithmetic interval and writes the last bits,
// followed by rbsp_trailing_bits() on the underlying writer.
func (e *Engine) Flush() {
	e.EncodeTerminatingBit(1)
	e.low <<= uint(e.bitsLeft)
	if e.cacheVal >= 0 {
		e.putByte(byte(e.cacheVal))
	}
	for ; e.numBytes > 0; e.numBytes-- {
		e.putByte(0xFF)
	}
	e.putByte(byte(e.low >> 16))
	e.putByte(byte(e.low >> 8))
	e.w.WriteRBSPTrailingBits()
}
