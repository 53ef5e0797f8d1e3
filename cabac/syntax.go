/*
DESCRIPTION
  syntax.go implements the HEVC CABAC syntax-element binarization
  helpers built on top of Engine: split flag, partition size, intra
  luma/chroma direction, coded-block-flag, last-significant-position,
  and per-coefficient-group residual syntax.

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

package cabac

import "github.com/mukk10/ces265/hevctab"

// EncodeSplitFlag encodes a CU quadtree split decision. ctxInc is the
// count of split neighbors already available (0..2), per 8.4.1/9.3.4.2.2.
func (e *Engine) EncodeSplitFlag(split bool, ctxInc int) {
	e.EncodeBin(boolBin(split), hevctab.OffSplitFlagCtx+ctxInc)
}

// EncodeSkipFlag encodes the skip flag; intra-only coding never skips,
// but the context slot is still exercised for the coded-block layout.
func (e *Engine) EncodeSkipFlag(skip bool, ctxInc int) {
	e.EncodeBin(boolBin(skip), hevctab.OffSkipFlagCtx+ctxInc)
}

// EncodePartSize encodes the CU partition size as a truncated-unary
// string against the four part-size contexts.
func (e *Engine) EncodePartSize(partIdx int) {
	for i := 0; i < partIdx; i++ {
		e.EncodeBin(0, hevctab.OffPartSizeCtx+i)
	}
	if partIdx < hevctab.NumPartSizeCtx {
		e.EncodeBin(1, hevctab.OffPartSizeCtx+partIdx)
	}
}

// EncodePredMode encodes the intra/inter prediction mode flag; this
// encoder only ever emits the intra value (1).
func (e *Engine) EncodePredMode(intra bool) {
	e.EncodeBin(boolBin(intra), hevctab.OffPredModeCtx)
}

// EncodeIntraLumaMPMFlag encodes whether the luma direction is coded via
// the most-probable-mode list.
func (e *Engine) EncodeIntraLumaMPMFlag(usesMPM bool) {
	e.EncodeBin(boolBin(usesMPM), hevctab.OffIntraPredCtx)
}

// EncodeIntraLumaMPMIdx encodes the 1-of-3 MPM index as truncated unary
// bypass bins.
func (e *Engine) EncodeIntraLumaMPMIdx(idx int) {
	switch idx {
	case 0:
		e.EncodeBinsEP(0, 1)
	case 1:
		e.EncodeBinsEP(0b10, 2)
	default:
		e.EncodeBinsEP(0b11, 2)
	}
}

// EncodeIntraLumaRem encodes the 5-bit fixed-length remainder mode
// index (mode rank among the 32 non-MPM candidates).
func (e *Engine) EncodeIntraLumaRem(rem int) {
	e.EncodeBinsEP(uint32(rem), 5)
}

// EncodeIntraChromaPredMode encodes the chroma direction: a first bin
// selecting DM (0) vs explicit (1), then, if explicit, a 2-bit bypass
// index into the 4 explicit modes.
func (e *Engine) EncodeIntraChromaPredMode(isDM bool, explicitIdx int) {
	e.EncodeBin(boolBin(!isDM), hevctab.OffChromaPredCtx)
	if !isDM {
		e.EncodeBinsEP(uint32(explicitIdx), 2)
	}
}

// cbfCtxOffset maps a luma/chroma component index (0=luma,1=cb,2=cr)
// combined with a transform-depth bucket to a CBF context offset. The
// 10 CBF contexts are two sets of 5: one for luma, one shared by Cb and Cr.
func cbfCtxOffset(comp, depthBucket int) int {
	if comp > 1 {
		comp = 1
	}
	return hevctab.OffQtCbfCtx + comp*5 + depthBucket
}

// EncodeCBF encodes the coded-block flag for component comp (0=luma,
// 1=cb, 2=cr) at transform-tree depth bucket depthBucket.
func (e *Engine) EncodeCBF(cbf bool, comp, depthBucket int) {
	e.EncodeBin(boolBin(cbf), cbfCtxOffset(comp, depthBucket))
}

// EncodeLastSigXY encodes the last-significant-coefficient (x,y)
// position as a truncated-unary prefix (context-coded) plus a
// fixed-length bypass suffix for prefixes > 3, per 9.3.3.1.2.
func (e *Engine) EncodeLastSigXY(x, y, log2Size, comp int) {
	e.encodeLastSigPrefix(x, log2Size, comp, hevctab.OffLastXCtx)
	e.encodeLastSigPrefix(y, log2Size, comp, hevctab.OffLastYCtx)
}

func (e *Engine) encodeLastSigPrefix(pos, log2Size, comp, base int) {
	groupIdx := lastSigGroupIdx(pos)
	ctxShift := (log2Size + 1) >> 2
	ctxOffset := 3 * (log2Size - 2)
	if comp != 0 {
		ctxOffset = 0
		ctxShift = log2Size - 2
		base += 15 // chroma contexts follow the 15 luma ones
	}
	maxGroupIdx := (log2Size << 1) - 1
	for i := 0; i < groupIdx; i++ {
		e.EncodeBin(1, base+ctxOffset+(i>>uint(ctxShift)))
	}
	if groupIdx < maxGroupIdx {
		e.EncodeBin(0, base+ctxOffset+(groupIdx>>uint(ctxShift)))
	}
	if groupIdx > 3 {
		nBits := (groupIdx >> 1) - 1
		rem := pos - lastSigGroupMin(groupIdx)
		e.EncodeBinsEP(uint32(rem), nBits)
	}
}

// lastSigGroupIdx finds groupIdx such that lastSigGroupMin(groupIdx) <=
// pos < lastSigGroupMin(groupIdx+1), by linear search over the small
// domain used here (block sizes up to 32x32, i.e. pos < 32).
func lastSigGroupIdx(pos int) int {
	for gi := 9; gi >= 0; gi-- {
		if pos >= lastSigGroupMin(gi) {
			return gi
		}
	}
	return 0
}

func lastSigGroupMin(groupIdx int) int {
	if groupIdx < 2 {
		return groupIdx
	}
	return (1 << uint((groupIdx>>1)-1)) * (2 + (groupIdx & 1))
}

// EncodeSigCoeffGroupFlag encodes whether a 4x4 coefficient group has
// any significant coefficient, ctxInc from right/bottom group pattern.
func (e *Engine) EncodeSigCoeffGroupFlag(sig bool, ctxInc int) {
	e.EncodeBin(boolBin(sig), hevctab.OffSigCoeffGroupCtx+ctxInc)
}

// EncodeSigCoeffFlag encodes a single coefficient's significance flag.
func (e *Engine) EncodeSigCoeffFlag(sig bool, ctxInc int) {
	e.EncodeBin(boolBin(sig), hevctab.OffSigFlagCtx+ctxInc)
}

// EncodeCoeffAbsGreater1 encodes the "level > 1" flag, ctxSet/ctxIdx per
// the running greater-than-1 context rotation within a group.
func (e *Engine) EncodeCoeffAbsGreater1(gt1 bool, ctxSet, ctxIdx int) {
	e.EncodeBin(boolBin(gt1), hevctab.OffOneFlagCtx+ctxSet*4+ctxIdx)
}

// EncodeCoeffAbsGreater2 encodes the "level > 2" flag for the first
// greater-than-1 coefficient in a group.
func (e *Engine) EncodeCoeffAbsGreater2(gt2 bool, ctxSet int) {
	e.EncodeBin(boolBin(gt2), hevctab.OffAbsFlagCtx+ctxSet)
}

// EncodeCoeffSign encodes one coefficient sign bit as a bypass bin.
func (e *Engine) EncodeCoeffSign(negative bool) {
	e.EncodeBinsEP(boolBin32(negative), 1)
}

// EncodeCoeffRemainExpGolomb encodes a coefficient level remainder using
// the Rice/Exp-Golomb switching binarization of 9.3.3.11, with Rice
// parameter riceParam.
func (e *Engine) EncodeCoeffRemainExpGolomb(value uint32, riceParam int) {
	prefix := value >> uint(riceParam)
	if prefix < hevctab.CoefRemainBinReduction {
		// prefix ones and their terminating 0 in one call, then the
		// riceParam-bit remainder
		e.EncodeBinsEP((1<<(prefix+1))-2, int(prefix)+1)
		e.EncodeBinsEP(value&((1<<uint(riceParam))-1), riceParam)
		return
	}
	// escape: a unary prefix longer than COEF_REMAIN_BIN_REDUCTION ones,
	// then an Exp-Golomb suffix of order riceParam
	codeWord := value - (hevctab.CoefRemainBinReduction << uint(riceParam))
	length := riceParam
	for codeWord >= (1 << uint(length)) {
		codeWord -= 1 << uint(length)
		length++
	}
	nPrefix := hevctab.CoefRemainBinReduction + length + 1 - riceParam
	e.EncodeBinsEP((1<<uint(nPrefix))-2, nPrefix)
	e.EncodeBinsEP(codeWord, length)
}

func bitLen(v uint32) int {
	n := 0
	for v > 0 {
		v >>= 1
		n++
	}
	return n
}

func boolBin(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func boolBin32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
