package engine

// UnitFlags classifies an Annex-B access unit by the NAL unit types it
// carries. Parameter sets mark codec config; IDR (H.264) or IRAP (H.265)
// slices mark a key frame. Data without start codes yields no flags.
func (c Codec) UnitFlags(unit []byte) BufferFlags {
	var flags BufferFlags
	for i := 0; i+3 < len(unit); i++ {
		if unit[i] != 0 || unit[i+1] != 0 || unit[i+2] != 1 {
			continue
		}
		header := unit[i+3]
		switch c {
		case CodecH264:
			switch header & 0x1f {
			case 5:
				flags |= FlagKeyFrame
			case 7, 8:
				flags |= FlagCodecConfig
			}
		case CodecH265:
			switch typ := (header >> 1) & 0x3f; {
			case typ >= 16 && typ <= 21:
				flags |= FlagKeyFrame
			case typ >= 32 && typ <= 34:
				flags |= FlagCodecConfig
			}
		}
		i += 3
	}
	return flags
}
