/*
DESCRIPTION
  headers.go emits the VPS, SPS, PPS and slice-header RBSPs that frame
  this module's coded slice data into a conformant HEVC Annex-B stream.

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

// Package headers emits HEVC VPS/SPS/PPS/slice-header NAL units.
package headers

import (
	"github.com/mukk10/ces265/bitio"
	"github.com/mukk10/ces265/params"
)

// NAL unit type byte values this encoder emits (nal_unit_header, 2 bytes:
// forbidden_zero_bit(1) + nal_unit_type(6) + layer_id(6) + tid_plus1(3)).
const (
	nalVPS       = 0x20 << 1 // nal_unit_type 32, shifted into the header's first byte
	nalSPS       = 0x21 << 1
	nalPPS       = 0x22 << 1
	nalIDRWRadl  = 0x13 << 1 // IDR_W_RADL: first picture of the sequence
)

func writeNALHeader(w *bitio.Writer, nalType uint32) error {
	if err := w.PutStartCode(); err != nil {
		return err
	}
	w.PutBits(nalType, 8, false)
	w.PutBits(0x01, 8, false) // layer_id=0, tid_plus1=1
	return nil
}

// GenVPS returns the RBSP bytes of the video parameter set.
func GenVPS() []byte {
	w := bitio.NewWriter(32)
	_ = writeNALHeader(w, nalVPS)
	w.PutBits(0, 4, true)  // vps_video_parameter_set_id
	w.PutBits(3, 2, true)  // reserved_three_2bits
	w.PutBits(0, 6, true)  // vps_max_layers_minus1
	w.PutBits(0, 3, true)  // vps_max_sub_layers_minus1
	w.PutBits(1, 1, true)  // vps_temporal_id_nesting_flag
	w.PutBits(0xFFFF, 16, true) // vps_reserved_0xffff_16bits
	writeProfileTierLevel(w)
	w.PutBits(0, 1, true) // vps_sub_layer_ordering_info_present_flag
	w.PutUE(0)            // vps_max_dec_pic_buffering_minus1
	w.PutUE(0)            // vps_max_num_reorder_pics
	w.PutUE(0)            // vps_max_latency_increase_plus1
	w.PutBits(0, 6, true)  // vps_max_layer_id
	w.PutUE(0)             // vps_num_layer_sets_minus1
	w.PutBits(0, 1, true)  // vps_timing_info_present_flag
	w.PutBits(0, 1, true)  // vps_extension_flag
	w.WriteRBSPTrailingBits()
	_ = w.Flush()
	w.FixZeroTermination()
	return w.Bytes()
}

// GenSPS returns the RBSP bytes of the sequence parameter set for the
// given frame/tile geometry.
func GenSPS(p *params.ImageParams) []byte {
	w := bitio.NewWriter(64)
	_ = writeNALHeader(w, nalSPS)
	w.PutBits(0, 4, true) // sps_video_parameter_set_id
	w.PutBits(0, 3, true) // sps_max_sub_layers_minus1
	w.PutBits(1, 1, true) // sps_temporal_id_nesting_flag
	writeProfileTierLevel(w)
	w.PutUE(0) // sps_seq_parameter_set_id
	w.PutUE(1) // chroma_format_idc = 1 (4:2:0)
	w.PutUE(uint32(p.FrameWidth))
	w.PutUE(uint32(p.FrameHeight))
	w.PutBits(0, 1, true) // conformance_window_flag
	w.PutUE(0)            // bit_depth_luma_minus8
	w.PutUE(0)            // bit_depth_chroma_minus8
	w.PutUE(12)           // log2_max_pic_order_cnt_lsb_minus4: 16-bit POC LSB, as in the slice header
	w.PutBits(0, 1, true) // sps_sub_layer_ordering_info_present_flag
	w.PutUE(0)            // sps_max_dec_pic_buffering_minus1
	w.PutUE(0)            // sps_max_num_reorder_pics
	w.PutUE(0)            // sps_max_latency_increase_plus1

	w.PutUE(bitsLog2(params.MinCUSize) - 2) // log2_min_luma_coding_block_size_minus3 equivalent for this encoder's fixed sizes
	w.PutUE(bitsDiff(params.CTUSize, params.MinCUSize))
	w.PutUE(0) // log2_min_luma_transform_block_size_minus2
	w.PutUE(bitsLog2(params.CTUSize) - 2)
	w.PutUE(3) // max_transform_hierarchy_depth_inter
	w.PutUE(3) // max_transform_hierarchy_depth_intra
	w.PutBits(0, 1, true) // scaling_list_enabled_flag
	w.PutBits(0, 1, true) // amp_enabled_flag
	w.PutBits(0, 1, true) // sample_adaptive_offset_enabled_flag (SAO itself is unimplemented, so the flag is left off)
	w.PutBits(0, 1, true) // pcm_enabled_flag

	w.PutUE(0) // num_short_term_ref_pic_sets (intra-only: no RPS needed)
	w.PutBits(0, 1, true) // long_term_ref_pics_present_flag
	w.PutBits(0, 1, true) // sps_temporal_mvp_enabled_flag
	w.PutBits(0, 1, true) // strong_intra_smoothing_enabled_flag
	w.PutBits(0, 1, true) // vui_parameters_present_flag
	w.PutBits(0, 1, true) // sps_extension_present_flag
	w.WriteRBSPTrailingBits()
	_ = w.Flush()
	w.FixZeroTermination()
	return w.Bytes()
}

// GenPPS returns the RBSP bytes of the picture parameter set. When the
// frame has more than one tile, tiles_enabled_flag is set and the tile
// column/row counts are written with uniform spacing.
func GenPPS(p *params.ImageParams) []byte {
	w := bitio.NewWriter(32)
	_ = writeNALHeader(w, nalPPS)
	w.PutUE(0) // pps_pic_parameter_set_id
	w.PutUE(0) // pps_seq_parameter_set_id
	w.PutBits(0, 1, true) // dependent_slice_segments_enabled_flag
	w.PutBits(0, 1, true) // output_flag_present_flag
	w.PutBits(0, 3, true) // num_extra_slice_header_bits
	w.PutBits(0, 1, true) // sign_data_hiding_enabled_flag
	w.PutBits(0, 1, true) // cabac_init_present_flag
	w.PutUE(0) // num_ref_idx_l0_default_active_minus1
	w.PutUE(0) // num_ref_idx_l1_default_active_minus1
	w.PutSE(int32(p.QP) - 26) // init_qp_minus26
	w.PutBits(0, 1, true) // constrained_intra_pred_flag
	w.PutBits(0, 1, true) // transform_skip_enabled_flag
	w.PutBits(0, 1, true) // cu_qp_delta_enabled_flag
	w.PutSE(0) // pps_cb_qp_offset
	w.PutSE(0) // pps_cr_qp_offset
	w.PutBits(0, 1, true) // pps_slice_chroma_qp_offsets_present_flag
	w.PutBits(0, 1, true) // weighted_pred_flag
	w.PutBits(0, 1, true) // weighted_bipred_flag
	w.PutBits(0, 1, true) // transquant_bypass_enabled_flag

	numTiles := len(p.Tiles)
	tilesEnabled := numTiles > 1
	w.PutBits(boolBit(tilesEnabled), 1, true) // tiles_enabled_flag
	w.PutBits(0, 1, true)                     // entropy_coding_sync_enabled_flag
	if tilesEnabled {
		cols, rows := tileGridDims(p)
		w.PutUE(uint32(cols - 1))
		w.PutUE(uint32(rows - 1))
		w.PutBits(1, 1, true) // uniform_spacing_flag
		w.PutBits(1, 1, true) // loop_filter_across_tiles_enabled_flag
	}
	w.PutBits(0, 1, true) // pps_loop_filter_across_slices_enabled_flag
	w.PutBits(0, 1, true) // deblocking_filter_control_present_flag
	w.PutBits(0, 1, true) // pps_scaling_list_data_present_flag
	w.PutBits(0, 1, true) // lists_modification_present_flag
	w.PutUE(0)            // log2_parallel_merge_level_minus2
	w.PutBits(0, 1, true) // slice_segment_header_extension_present_flag
	w.PutBits(0, 1, true) // pps_extension_present_flag
	w.WriteRBSPTrailingBits()
	_ = w.Flush()
	w.FixZeroTermination()
	return w.Bytes()
}

// SliceHeader holds the fields written into the slice-segment header
// NAL. EntryPointOffsets is only known after every tile has finished
// encoding, so the caller fills it in before calling GenSliceHeader and
// prepends the returned bytes to the stitched tile payloads.
type SliceHeader struct {
	FirstSliceInPic    bool
	POCLsb             uint32
	QP                 int32
	EntryPointOffsets  []uint32 // byte length of each tile substream except the last
	LastSliceOfPicture bool
}

// GenSliceHeader returns the slice-segment-header RBSP bytes, including
// nal header. The entry-point-offset list length field requires
// num_entry_point_offsets, which is len(h.EntryPointOffsets).
func GenSliceHeader(h SliceHeader, idr bool) []byte {
	w := bitio.NewWriter(64)
	nalType := uint32(nalIDRWRadl)
	if !idr {
		nalType = 0x01 << 1 // TRAIL_R, unused in this GOP-size-1 encoder but kept for completeness
	}
	_ = writeNALHeader(w, nalType)

	w.PutBits(boolBit(h.FirstSliceInPic), 1, true) // first_slice_segment_in_pic_flag
	if idr {
		w.PutBits(0, 1, true) // no_output_of_prior_pics_flag
	}
	w.PutUE(0) // slice_pic_parameter_set_id
	w.PutUE(2) // slice_type = I (2)
	if !idr {
		w.PutBits(h.POCLsb, 16, true) // pic_order_cnt_lsb (size fixed at 16 for this encoder)
	}
	w.PutSE(h.QP - 26) // slice_qp_delta
	w.PutBits(1, 1, true) // slice_loop_filter_across_slices_enabled_flag... kept consistent with PPS's disabled deblocking/SAO

	if len(h.EntryPointOffsets) > 0 {
		w.PutUE(uint32(len(h.EntryPointOffsets)))
		offsetLenMinus1 := offsetBitsMinus1(h.EntryPointOffsets)
		w.PutUE(uint32(offsetLenMinus1))
		for _, off := range h.EntryPointOffsets {
			w.PutBits(off, offsetLenMinus1+1, true)
		}
	} else {
		w.PutUE(0)
	}
	w.WriteRBSPTrailingBits()
	_ = w.Flush()
	w.FixZeroTermination()
	return w.Bytes()
}

func offsetBitsMinus1(offsets []uint32) int {
	var max uint32
	for _, o := range offsets {
		if o > max {
			max = o
		}
	}
	bits := 1
	for (uint32(1) << uint(bits)) <= max {
		bits++
	}
	return bits - 1
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func bitsLog2(v int) uint32 {
	n := uint32(0)
	for (1 << n) < v {
		n++
	}
	return n
}

func bitsDiff(a, b int) uint32 {
	return bitsLog2(a) - bitsLog2(b)
}

func tileGridDims(p *params.ImageParams) (cols, rows int) {
	maxCol, maxRow := 0, 0
	for _, t := range p.Tiles {
		if t.StartCTUX > maxCol {
			maxCol = t.StartCTUX
		}
		if t.StartCTUY > maxRow {
			maxRow = t.StartCTUY
		}
	}
	// tiles are laid out uniformly and in raster order by params.New, so
	// distinct StartCTUX values among ID-ascending tiles bound column count.
	cols, rows = 1, 1
	for _, t := range p.Tiles {
		if t.StartCTUX == 0 && t.ID != 0 {
			rows++
		}
	}
	for _, t := range p.Tiles {
		if t.StartCTUY == 0 {
			cols++
		}
	}
	cols-- // correct the seed count above
	return cols, rows
}

// writeProfileTierLevel emits the fixed general_profile_tier_level
// syntax this encoder claims: Main profile, general tier, level 6.2,
// with every compatibility/progressive-source flag set permissively.
func writeProfileTierLevel(w *bitio.Writer) {
	w.PutBits(0, 2, true)  // general_profile_space
	w.PutBits(0, 1, true)  // general_tier_flag
	w.PutBits(1, 5, true)  // general_profile_idc = Main
	w.PutBits(0x60000000, 32, true) // general_profile_compatibility_flag[32] (bit 1 set: Main)
	w.PutBits(1, 1, true)  // general_progressive_source_flag
	w.PutBits(0, 1, true)  // general_interlaced_source_flag
	w.PutBits(1, 1, true)  // general_non_packed_constraint_flag
	w.PutBits(1, 1, true)  // general_frame_only_constraint_flag
	w.PutBits(0, 32, true) // reserved_zero_43bits (split across two PutBits calls)
	w.PutBits(0, 11, true)
	w.PutBits(0, 1, true)  // reserved_zero_bit
	w.PutBits(186, 8, true) // general_level_idc = 6.2 (93*2)
}
