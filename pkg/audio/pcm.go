package audio

import (
	"encoding/base64"
	"encoding/binary"
)

// DefaultChunkSize is 20ms of 16kHz mono 16-bit PCM.
const DefaultChunkSize = 640

// ChunkPCM splits PCM audio data into chunks of the given size. The last
// chunk may be shorter.
func ChunkPCM(pcmData []byte, chunkSize int) [][]byte {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var chunks [][]byte
	for i := 0; i < len(pcmData); i += chunkSize {
		end := i + chunkSize
		if end > len(pcmData) {
			end = len(pcmData)
		}
		chunks = append(chunks, pcmData[i:end])
	}

	return chunks
}

// EncodePCMChunkToBase64 encodes a PCM chunk for a JSON media event
func EncodePCMChunkToBase64(pcmChunk []byte) string {
	return base64.StdEncoding.EncodeToString(pcmChunk)
}

// DecodeBase64PCM decodes base64-encoded PCM from a JSON media event
func DecodeBase64PCM(base64Data string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Data)
}

// WAVFromPCM wraps raw 16-bit mono PCM in a WAV container
func WAVFromPCM(pcmData []byte, sampleRate int) []byte {
	if sampleRate == 0 {
		sampleRate = 16000
	}
	const bitsPerSample = 16
	const channels = 1
	dataSize := len(pcmData)

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*channels*bitsPerSample/8))
	binary.LittleEndian.PutUint16(header[32:34], uint16(channels*bitsPerSample/8))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))

	wav := make([]byte, 44+dataSize)
	copy(wav[0:44], header)
	copy(wav[44:], pcmData)

	return wav
}
