package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"math"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	broker     = flag.String("broker", "localhost:9092", "Kafka broker address")
	topic      = flag.String("topic", "sample-stream", "Topic to produce sample frames to")
	streamName = flag.String("stream", "synthetic-emg", "Stream name carried in every frame")
	channels   = flag.Int("channels", 2, "Number of interleaved channels")
	frameSize  = flag.Int("frame", 64, "Samples per channel per frame")
	rate       = flag.Float64("rate", 1000, "Sample rate per channel in Hz")
)

// SampleFrame matches what the feature stream service expects.
type SampleFrame struct {
	Stream    string    `json:"stream"`
	Channels  int       `json:"channels"`
	Samples   []float64 `json:"samples"`
	Timestamp time.Time `json:"timestamp"`
}

func main() {
	flag.Parse()

	writer := &kafka.Writer{
		Addr:     kafka.TCP(*broker),
		Topic:    *topic,
		Balancer: &kafka.LeastBytes{},
	}
	defer func() {
		if err := writer.Close(); err != nil {
			log.Printf("Error closing kafka writer: %v", err)
		}
	}()
	log.Printf("Starting synthetic producer for topic: %s on broker: %s", *topic, *broker)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	period := time.Duration(float64(*frameSize) / *rate * float64(time.Second))
	if period <= 0 {
		log.Fatalf("frame size %d at %g Hz gives a non-positive frame period", *frameSize, *rate)
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	gen := newGenerator(*channels, *rate, rand.New(rand.NewSource(time.Now().UnixNano())))

	for {
		select {
		case now := <-ticker.C:
			frame := SampleFrame{
				Stream:    *streamName,
				Channels:  *channels,
				Samples:   gen.next(*frameSize),
				Timestamp: now.UTC(),
			}
			msgBytes, err := json.Marshal(frame)
			if err != nil {
				log.Printf("Error marshalling frame: %v", err)
				continue
			}

			err = writer.WriteMessages(ctx, kafka.Message{Key: []byte(frame.Stream), Value: msgBytes})
			if err != nil {
				if ctx.Err() != nil {
					log.Println("Context cancelled, exiting frame loop.")
					return
				}
				log.Printf("Error writing frame: %v", err)
			}

		case <-ctx.Done():
			log.Println("Producer loop stopped.")
			return
		}
	}
}

// generator emits a noisy sine per channel with occasional bursts, so the
// amplitude-counting stages have something to count.
type generator struct {
	channels int
	rate     float64
	n        int
	rng      *rand.Rand
	burst    int
}

func newGenerator(channels int, rate float64, rng *rand.Rand) *generator {
	return &generator{channels: channels, rate: rate, rng: rng}
}

func (g *generator) next(perChannel int) []float64 {
	out := make([]float64, 0, perChannel*g.channels)
	for i := 0; i < perChannel; i++ {
		if g.burst == 0 && g.rng.Float64() < 0.002 {
			g.burst = int(g.rate / 10)
		}
		gain := 1.0
		if g.burst > 0 {
			gain = 4
			g.burst--
		}
		t := float64(g.n) / g.rate
		for c := 0; c < g.channels; c++ {
			freq := 10.0 * float64(c+1)
			out = append(out, gain*math.Sin(2*math.Pi*freq*t)+0.1*g.rng.NormFloat64())
		}
		g.n++
	}
	return out
}
