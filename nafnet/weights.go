// Copyright 2025 The NAFNet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nafnet

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/zhongruiw/NAFNet/internal/serialization"
	"github.com/zhongruiw/NAFNet/tensor"
)

// SaveWeights writes the network's state dict to a SafeTensors file.
//
// The file's metadata records the architecture next to any entries in metadata.
func SaveWeights[B tensor.Backend](path string, net *NAFNet[B], metadata map[string]string) error {
	cfg := net.Config()
	meta := map[string]string{
		"format":         "pt",
		"arch":           "NAFNet_lr",
		"img_channel":    strconv.Itoa(cfg.ImgChannel),
		"width":          strconv.Itoa(cfg.Width),
		"middle_blk_num": strconv.Itoa(cfg.MiddleBlkNum),
		"enc_blk_nums":   joinInts(cfg.EncBlkNums),
		"dec_blk_nums":   joinInts(cfg.DecBlkNums),
	}
	maps.Copy(meta, metadata)

	if err := serialization.WriteSafeTensors(path, net.StateDict(), meta); err != nil {
		return fmt.Errorf("save weights: %w", err)
	}
	return nil
}

// LoadWeights reads a SafeTensors file into the network.
// The file must hold exactly the network's parameters.
func LoadWeights[B tensor.Backend](path string, net *NAFNet[B]) error {
	stateDict, _, err := serialization.ReadSafeTensors(path)
	if err != nil {
		return fmt.Errorf("load weights %s: %w", path, err)
	}
	if err := net.LoadStateDict(stateDict); err != nil {
		return fmt.Errorf("load weights %s: %w", path, err)
	}
	return nil
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
