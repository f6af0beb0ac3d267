package audio

// Resample8kTo16k resamples 8kHz PCM16 audio to 16kHz using linear
// interpolation. Input and output are 16-bit signed little-endian mono.
func Resample8kTo16k(pcm8k []byte) []byte {
	if len(pcm8k) == 0 {
		return nil
	}

	samples8k := make([]int16, len(pcm8k)/2)
	for i := 0; i < len(samples8k); i++ {
		samples8k[i] = int16(pcm8k[i*2]) | int16(pcm8k[i*2+1])<<8
	}

	samples16k := make([]int16, len(samples8k)*2)
	for i := 0; i < len(samples8k); i++ {
		samples16k[i*2] = samples8k[i]
		if i < len(samples8k)-1 {
			samples16k[i*2+1] = int16((int32(samples8k[i]) + int32(samples8k[i+1])) / 2)
		} else {
			samples16k[i*2+1] = samples8k[i]
		}
	}

	result := make([]byte, len(samples16k)*2)
	for i, sample := range samples16k {
		result[i*2] = byte(sample & 0xFF)
		result[i*2+1] = byte((sample >> 8) & 0xFF)
	}

	return result
}

// Resample16kTo8k resamples 16kHz PCM16 audio to 8kHz by decimation.
func Resample16kTo8k(pcm16k []byte) []byte {
	if len(pcm16k) == 0 {
		return nil
	}

	samples16k := make([]int16, len(pcm16k)/2)
	for i := 0; i < len(samples16k); i++ {
		samples16k[i] = int16(pcm16k[i*2]) | int16(pcm16k[i*2+1])<<8
	}

	samples8k := make([]int16, len(samples16k)/2)
	for i := 0; i < len(samples8k); i++ {
		samples8k[i] = samples16k[i*2]
	}

	result := make([]byte, len(samples8k)*2)
	for i, sample := range samples8k {
		result[i*2] = byte(sample & 0xFF)
		result[i*2+1] = byte((sample >> 8) & 0xFF)
	}

	return result
}
