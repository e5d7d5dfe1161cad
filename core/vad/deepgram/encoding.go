package deepgram

import (
	"fmt"

	"github.com/embodielabs/presence-core/core/audio"
)

// encodingParams holds the query-parameter values deepgram expects for the
// audio the client will stream.
type encodingParams struct {
	sampleRate int
	format     string
}

var supportedSampleRates = map[int]bool{
	8000: true, 16000: true, 24000: true, 32000: true, 48000: true,
}

// convertEncoding validates the device encoding against what the deepgram
// live endpoint accepts. Companded formats are 8kHz only.
func convertEncoding(encoding audio.EncodingInfo) (encodingParams, error) {
	if !supportedSampleRates[encoding.SampleRate] {
		return encodingParams{}, fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}
	params := encodingParams{sampleRate: encoding.SampleRate}

	switch encoding.Format {
	case audio.EncodingLinear16:
		params.format = "linear16"
	case audio.EncodingALaw:
		params.format = "alaw"
	case audio.EncodingMulaw:
		params.format = "mulaw"
	default:
		return encodingParams{}, fmt.Errorf("unsupported encoding %q", encoding.Format)
	}
	if params.format != "linear16" && params.sampleRate != 8000 {
		return encodingParams{}, fmt.Errorf("unsupported sample rate %d for %s encoding", params.sampleRate, params.format)
	}
	return params, nil
}
