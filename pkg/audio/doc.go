// Package audio groups the audio front-end used by vocalis:
//
//   - wave: mono float waveforms, fixed-length segmentation and padding
//   - ingest: decoding WAV, MP3 and AAC-family uploads to a canonical rate
//   - resampler: sample-rate and channel conversion
//   - fbank: framing, windows, FFT power spectra, mel banks and MFCCs
package audio
