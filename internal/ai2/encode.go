package ai2

// AppendSubPacket appends one [type, len_lo, len_hi, payload...] unit
// to a frame body and returns the extended slice.
func AppendSubPacket(body []byte, typ byte, payload []byte) []byte {
	body = append(body, typ, byte(len(payload)), byte(len(payload)>>8))
	return append(body, payload...)
}

// EncodeBody wraps a raw frame body (a sub-packet stream) for the
// wire: raw start marker and class byte, escaped body and checksum,
// raw terminator.
//
// The class byte is never escaped, even when its value is 0x10; the
// receiver reads it positionally. Every 0x10 in the escaped region is
// doubled so the deframer reconstructs it as one literal byte.
func EncodeBody(class byte, body []byte) []byte {
	sum := uint16(marker) + uint16(class)
	for _, b := range body {
		sum += uint16(b)
	}

	out := make([]byte, 0, len(body)+8)
	out = append(out, marker, class)
	out = appendEscaped(out, body)
	out = appendEscaped(out, []byte{byte(sum), byte(sum >> 8)})
	return append(out, marker, terminator)
}

// Encode builds a frame carrying a single command sub-packet. Most
// receiver commands are sent this way; bring-up batches several
// sub-packets into one frame via AppendSubPacket + EncodeBody.
func Encode(class, cmd byte, payload []byte) []byte {
	return EncodeBody(class, AppendSubPacket(nil, cmd, payload))
}

func appendEscaped(dst, p []byte) []byte {
	for _, b := range p {
		if b == marker {
			dst = append(dst, marker)
		}
		dst = append(dst, b)
	}
	return dst
}
