package realtime

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/oggreader"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"

	"voice-navigator/internal/application/port/output"
)

const (
	opusSampleRate = 48000
	opusChannels   = 2
)

// audioPipe plays an Ogg/Opus source into the session and records the
// remote track.
type audioPipe struct {
	logger output.LoggerPort

	source io.ReadCloser
	track  *webrtc.TrackLocalStaticSample

	mu     sync.Mutex
	writer *oggwriter.OggWriter
}

func newAudioPipe(pc *webrtc.PeerConnection, opts Options, logger output.LoggerPort) (*audioPipe, error) {
	p := &audioPipe{logger: logger}

	if opts.AudioIn == "" {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return nil, fmt.Errorf("add audio transceiver: %w", err)
		}
	} else {
		source, err := openSource(opts.AudioIn)
		if err != nil {
			return nil, err
		}
		track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: opusSampleRate,
			Channels:  opusChannels,
		}, "audio", "voice-navigator")
		if err != nil {
			source.Close()
			return nil, fmt.Errorf("create audio track: %w", err)
		}
		sender, err := pc.AddTrack(track)
		if err != nil {
			source.Close()
			return nil, fmt.Errorf("add audio track: %w", err)
		}
		go drainRTCP(sender)
		p.source, p.track = source, track
	}

	if opts.AudioOut != "" {
		writer, err := oggwriter.New(opts.AudioOut, opusSampleRate, opusChannels)
		if err != nil {
			p.close()
			return nil, fmt.Errorf("create audio output: %w", err)
		}
		p.writer = writer
		pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			if track.Kind() == webrtc.RTPCodecTypeAudio {
				p.record(track)
			}
		})
	}
	return p, nil
}

func openSource(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio input: %w", err)
	}
	return f, nil
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// start streams the source until it ends or done is closed.
func (p *audioPipe) start(done <-chan struct{}) {
	if p.track == nil {
		return
	}
	go func() {
		if err := p.stream(done); err != nil {
			p.logger.Warn("Audio input stopped", "error", err)
		}
	}()
}

func (p *audioPipe) stream(done <-chan struct{}) error {
	reader, _, err := oggreader.NewWith(p.source)
	if err != nil {
		return fmt.Errorf("read ogg header: %w", err)
	}

	var lastGranule uint64
	for {
		select {
		case <-done:
			return nil
		default:
		}

		page, header, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) {
			p.logger.Info("Audio input finished")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read ogg page: %w", err)
		}

		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		duration := time.Duration(float64(samples)/opusSampleRate*1000) * time.Millisecond

		if err := p.track.WriteSample(media.Sample{Data: page, Duration: duration}); err != nil {
			return fmt.Errorf("write audio sample: %w", err)
		}
		time.Sleep(duration)
	}
}

func (p *audioPipe) record(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		p.mu.Lock()
		if p.writer != nil {
			if err := p.writer.WriteRTP(pkt); err != nil {
				p.logger.Warn("Audio output write failed", "error", err)
			}
		}
		p.mu.Unlock()
	}
}

func (p *audioPipe) close() error {
	var errs []error
	if p.source != nil {
		if err := p.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close audio input: %w", err))
		}
	}
	p.mu.Lock()
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close audio output: %w", err))
		}
		p.writer = nil
	}
	p.mu.Unlock()
	return errors.Join(errs...)
}
