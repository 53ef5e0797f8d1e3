/*
DESCRIPTION
  cabac.go publishes the CABAC arithmetic-coding engine tables: the LPS
  range table and state transition table (shared bit-exact with H.264
  CABAC, since HEVC reuses the same binary arithmetic coder), the context
  model layout (cascading offsets into a single flat context array), and
  the coefficient-group scan constants.

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

package hevctab

// RangeTabLPS provides codIRangeLPS indexed [pStateIdx][qCodIRangeIdx],
// per the standard's table 9-44. HEVC's binary arithmetic coder reuses
// this table unchanged from H.264 CABAC.
var RangeTabLPS = [64][4]uint32{
	{128, 176, 208, 240}, {128, 167, 197, 227}, {128, 158, 187, 216}, {123, 150, 178, 205},
	{116, 142, 169, 195}, {111, 135, 160, 185}, {105, 128, 152, 175}, {100, 122, 144, 166},
	{95, 116, 137, 158}, {90, 110, 130, 150}, {85, 104, 123, 142}, {81, 99, 117, 135},
	{77, 94, 111, 128}, {73, 89, 105, 122}, {69, 85, 100, 116}, {66, 80, 95, 110},
	{62, 76, 90, 104}, {59, 72, 86, 99}, {56, 69, 81, 94}, {53, 65, 77, 89},
	{51, 62, 73, 85}, {48, 59, 69, 80}, {46, 56, 66, 76}, {43, 53, 63, 72},
	{41, 50, 59, 69}, {39, 48, 56, 65}, {37, 45, 54, 62}, {35, 43, 51, 59},
	{33, 41, 48, 56}, {32, 39, 46, 53}, {30, 37, 43, 50}, {29, 35, 41, 48},
	{27, 33, 39, 45}, {26, 31, 37, 43}, {24, 30, 35, 41}, {23, 28, 33, 39},
	{22, 27, 32, 37}, {21, 26, 30, 35}, {20, 24, 29, 33}, {19, 23, 27, 31},
	{18, 22, 26, 30}, {17, 21, 25, 28}, {16, 20, 23, 27}, {15, 19, 22, 25},
	{14, 18, 21, 24}, {14, 17, 20, 23}, {13, 16, 19, 22}, {12, 15, 18, 21},
	{12, 14, 17, 20}, {11, 14, 16, 19}, {11, 13, 15, 18}, {10, 12, 15, 17},
	{10, 12, 14, 16}, {9, 11, 13, 15}, {9, 11, 12, 14}, {8, 10, 12, 14},
	{8, 9, 11, 13}, {7, 9, 11, 12}, {7, 9, 10, 12}, {7, 8, 10, 11},
	{6, 8, 9, 11}, {6, 7, 9, 10}, {6, 7, 8, 9}, {2, 2, 2, 2},
}

// TransIdxLPS is the next pStateIdx on an LPS decision, per table 9-45.
var TransIdxLPS = [64]uint8{
	0, 0, 1, 2, 2, 4, 4, 5, 6, 7, 8, 9, 9, 11, 11, 12,
	13, 13, 15, 15, 16, 16, 18, 18, 19, 19, 21, 21, 22, 22, 23, 24,
	24, 25, 26, 26, 27, 27, 28, 29, 29, 30, 30, 30, 31, 32, 32, 33,
	33, 33, 34, 34, 35, 35, 35, 36, 36, 36, 37, 37, 37, 38, 38, 63,
}

// TransIdxMPS is the next pStateIdx on an MPS decision, per table 9-45.
var TransIdxMPS = [64]uint8{
	1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16,
	17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32,
	33, 34, 35, 36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47, 48,
	49, 50, 51, 52, 53, 54, 55, 56, 57, 58, 59, 60, 61, 62, 62, 63,
}

// CNU is the dummy context-state initialization value used for contexts
// whose probability state is determined at first use rather than seeded
// from a slice-type-dependent init table.
const CNU = 154

// Cascading context-model offsets into a single flat context-state array,
// mirroring the original encoder's OFF_*_CTX / NUM_*_CTX layout.
const (
	NumSplitFlagCtx    = 3
	OffSplitFlagCtx    = 0
	NumSkipFlagCtx     = 3
	OffSkipFlagCtx     = OffSplitFlagCtx + NumSplitFlagCtx
	NumMergeFlagCtx    = 1
	OffMergeFlagCtx    = OffSkipFlagCtx + NumSkipFlagCtx
	NumPartSizeCtx     = 4
	OffPartSizeCtx     = OffMergeFlagCtx + NumMergeFlagCtx
	NumPredModeCtx     = 1
	OffPredModeCtx     = OffPartSizeCtx + NumPartSizeCtx
	NumIntraPredCtx    = 1
	OffIntraPredCtx    = OffPredModeCtx + NumPredModeCtx
	NumChromaPredCtx   = 2
	OffChromaPredCtx   = OffIntraPredCtx + NumIntraPredCtx
	NumTransSubdivCtx  = 3
	OffTransSubdivCtx  = OffChromaPredCtx + NumChromaPredCtx
	NumQtCbfCtx        = 10
	OffQtCbfCtx        = OffTransSubdivCtx + NumTransSubdivCtx
	NumQtRootCbfCtx    = 1
	OffQtRootCbfCtx    = OffQtCbfCtx + NumQtCbfCtx
	NumDeltaQPCtx      = 3
	OffDeltaQPCtx      = OffQtRootCbfCtx + NumQtRootCbfCtx
	NumSigCoeffGroupCtx = 4
	OffSigCoeffGroupCtx = OffDeltaQPCtx + NumDeltaQPCtx
	NumSigFlagCtx      = 44
	OffSigFlagCtx      = OffSigCoeffGroupCtx + NumSigCoeffGroupCtx
	NumLastXCtx        = 18
	OffLastXCtx        = OffSigFlagCtx + NumSigFlagCtx
	NumLastYCtx        = 18
	OffLastYCtx        = OffLastXCtx + NumLastXCtx
	NumOneFlagCtx      = 24
	OffOneFlagCtx      = OffLastYCtx + NumLastYCtx
	NumAbsFlagCtx      = 6
	OffAbsFlagCtx      = OffOneFlagCtx + NumOneFlagCtx
	NumMvdCtx          = 2
	OffMvdCtx          = OffAbsFlagCtx + NumAbsFlagCtx
	NumRefNoCtx        = 2
	OffRefNoCtx        = OffMvdCtx + NumMvdCtx
	NumTransformSkipFlagCtx = 2
	OffTransformSkipFlagCtx = OffRefNoCtx + NumRefNoCtx
	NumCuTransquantBypassFlagCtx = 1
	OffCuTransquantBypassFlagCtx = OffTransformSkipFlagCtx + NumTransformSkipFlagCtx
	NumTsFlagCtx       = 1
	OffTsFlagCtx       = OffCuTransquantBypassFlagCtx + NumCuTransquantBypassFlagCtx

	// MaxNumCtxMod is the total size of the flat per-slice context array.
	MaxNumCtxMod = 256
)

const (
	// MlsCgSize is the coefficient group side length (4x4 sub-blocks).
	MlsCgSize = 4
	// MlsGrpNum is the maximum number of coefficient groups per TU.
	MlsGrpNum = 64
	// Log2ScanSetSize is log2 of the number of coefficients in a scan set.
	Log2ScanSetSize = 4
	// C1FlagNumber bounds the greater-than-1 context run per group.
	C1FlagNumber = 8
	// C2FlagNumber bounds the greater-than-2 context run per group.
	C2FlagNumber = 1
	// CoefRemainBinReduction is the Rice-code order-reduction constant
	// used when binarizing remaining coefficient levels.
	CoefRemainBinReduction = 3
)
