// Command pose-sender streams synthetic landmark frames at a daemon over
// UDP: a standing figure with swinging arms, useful for exercising the
// pipeline without a camera.
package main

import (
	"flag"
	"log"
	"math"
	"net"
	"time"

	"github.com/lumen-motion/avatar.track/internal/geom"
	"github.com/lumen-motion/avatar.track/internal/network"
	"github.com/lumen-motion/avatar.track/internal/rig"
)

var (
	target    = flag.String("target", "127.0.0.1:9050", "Daemon UDP address")
	rate      = flag.Float64("rate", 30, "Frames per second")
	swing     = flag.Float64("swing", 0.4, "Arm swing amplitude in radians")
	period    = flag.Float64("period", 2.0, "Arm swing period in seconds")
	withDelta = flag.Bool("delta", false, "Append a forward/back delta scalar")
	duration  = flag.Duration("duration", 0, "Stop after this long (0: run forever)")
)

// standingPose writes a standing figure into points, arms swinging by phase.
func standingPose(points *[rig.LandmarkCount]geom.Vec, phase float64) {
	set := func(l rig.Landmark, x, y, z float64) {
		points[l] = geom.Vec{X: x, Y: y, Z: z}
	}
	set(rig.Nose, 0, 1.65, 0.08)
	set(rig.LeftShoulder, 0.2, 1.45, 0)
	set(rig.RightShoulder, -0.2, 1.45, 0)
	set(rig.LeftHip, 0.12, 1.0, 0)
	set(rig.RightHip, -0.12, 1.0, 0)
	set(rig.LeftKnee, 0.13, 0.55, 0.02)
	set(rig.RightKnee, -0.13, 0.55, 0.02)
	set(rig.LeftAnkle, 0.13, 0.1, 0)
	set(rig.RightAnkle, -0.13, 0.1, 0)
	set(rig.LeftFootIndex, 0.13, 0.02, 0.15)
	set(rig.RightFootIndex, -0.13, 0.02, 0.15)

	// Arms swing forward and back in opposition.
	s := math.Sin(phase) * *swing
	set(rig.LeftElbow, 0.25, 1.15, -0.3*s)
	set(rig.LeftWrist, 0.27, 0.9, -0.6*s)
	set(rig.RightElbow, -0.25, 1.15, 0.3*s)
	set(rig.RightWrist, -0.27, 0.9, 0.6*s)
}

func main() {
	flag.Parse()

	conn, err := net.Dial("udp", *target)
	if err != nil {
		log.Fatalf("dialing %s: %v", *target, err)
	}
	defer conn.Close()

	interval := time.Duration(float64(time.Second) / *rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	log.Printf("sending %.0f fps to %s", *rate, *target)
	start := time.Now()
	var points [rig.LandmarkCount]geom.Vec
	var sent int
	for {
		select {
		case <-deadline:
			log.Printf("sent %d frames", sent)
			return
		case now := <-ticker.C:
			phase := now.Sub(start).Seconds() * 2 * math.Pi / *period
			standingPose(&points, phase)

			values := make([]float64, 0, rig.FrameFloats+1)
			for _, p := range points {
				values = append(values, p.X, p.Y, p.Z)
			}
			if *withDelta {
				values = append(values, 0.1*math.Sin(phase/4))
			}
			if _, err := conn.Write(network.EncodeDatagram(values)); err != nil {
				log.Fatalf("sending frame: %v", err)
			}
			sent++
		}
	}
}
