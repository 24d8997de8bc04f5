package encoder

import "fmt"

// Profile is the transcode target applied to every job.
type Profile struct {
	VideoCodec   string
	Height       int // width is derived from the aspect ratio
	CRF          int
	Preset       string
	AudioCodec   string
	AudioBitrate string
	FastStart    bool // relocate the moov atom for progressive download
	Extension    string
	ContentType  string
}

// DefaultProfile: 480p H.264 at CRF 28, AAC 128k, faststart MP4.
var DefaultProfile = Profile{
	VideoCodec:   "libx264",
	Height:       480,
	CRF:          28,
	Preset:       "fast",
	AudioCodec:   "aac",
	AudioBitrate: "128k",
	FastStart:    true,
	Extension:    ".mp4",
	ContentType:  "video/mp4",
}

func (p Profile) isZero() bool {
	return p == Profile{}
}

// ScaleFilter keeps the aspect ratio; -2 rounds the width to an even number
// as libx264 requires.
func (p Profile) ScaleFilter() string {
	return fmt.Sprintf("scale=-2:%d", p.Height)
}

// Args builds the ffmpeg argument list. -n makes ffmpeg fail instead of
// overwriting an existing output, and -progress streams key=value progress
// blocks to stdout.
func (p Profile) Args(input, output string) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-n",
		"-i", input,
		"-vf", p.ScaleFilter(),
		"-c:v", p.VideoCodec,
		"-crf", fmt.Sprint(p.CRF),
		"-preset", p.Preset,
		"-c:a", p.AudioCodec,
		"-b:a", p.AudioBitrate,
	}
	if p.FastStart {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, "-progress", "pipe:1", "-nostats", output)
}
