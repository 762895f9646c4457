/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package mediatest builds small audio payloads for tests.
package mediatest

import (
	"bytes"
	"encoding/binary"
)

// SilentWAV returns a mono 16-bit PCM WAV file of the given length.
func SilentWAV(sampleRate, samples int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8
	dataSize := samples * blockAlign

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

// ID3WithPicture returns an ID3v2.3 tag holding a single APIC frame.
func ID3WithPicture(mimeType string, picture []byte) []byte {
	var frame bytes.Buffer
	frame.WriteByte(0x00) // ISO-8859-1
	frame.WriteString(mimeType)
	frame.WriteByte(0x00)
	frame.WriteByte(0x03) // front cover
	frame.WriteByte(0x00) // empty description
	frame.Write(picture)

	var body bytes.Buffer
	body.WriteString("APIC")
	binary.Write(&body, binary.BigEndian, uint32(frame.Len()))
	body.Write([]byte{0x00, 0x00})
	body.Write(frame.Bytes())

	size := body.Len()
	var out bytes.Buffer
	out.WriteString("ID3")
	out.Write([]byte{0x03, 0x00, 0x00})
	out.Write([]byte{
		byte(size>>21) & 0x7f,
		byte(size>>14) & 0x7f,
		byte(size>>7) & 0x7f,
		byte(size) & 0x7f,
	})
	out.Write(body.Bytes())
	return out.Bytes()
}
