package admission

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrUndetectable means the probe cannot tell on this platform and the
// learner has to attest manually.
var ErrUndetectable = errors.New("not detectable on this device")

// DeviceProbe detects device readiness. Errors never fail the flow; they
// downgrade the item to manual attestation.
type DeviceProbe interface {
	Name() string
	FlightMode(ctx context.Context) (bool, error)
	Earphones(ctx context.Context) (bool, error)
}

// SelectProbe picks the implementation at startup.
func SelectProbe(native bool, sysRoot string) DeviceProbe {
	if native {
		return NativeProbe{Root: sysRoot}
	}
	return SimulatedProbe{}
}

// SimulatedProbe detects nothing; every item needs attestation.
type SimulatedProbe struct{}

func (SimulatedProbe) Name() string { return "simulated" }
func (SimulatedProbe) FlightMode(context.Context) (bool, error) { return false, ErrUndetectable }
func (SimulatedProbe) Earphones(context.Context) (bool, error) { return false, ErrUndetectable }

// NativeProbe reads Linux sysfs: rfkill for radios and extcon for the
// headphone jack. Root defaults to "/".
type NativeProbe struct {
	Root string
}

func (NativeProbe) Name() string { return "native" }

func (p NativeProbe) sys(parts ...string) string {
	root := p.Root
	if root == "" {
		root = "/"
	}
	return filepath.Join(append([]string{root, "sys", "class"}, parts...)...)
}

// FlightMode reports true when every wireless radio is soft- or hard-blocked.
func (p NativeProbe) FlightMode(ctx context.Context) (bool, error) {
	dirs, err := filepath.Glob(p.sys("rfkill", "rfkill*"))
	if err != nil {
		return false, err
	}
	radios := 0
	for _, d := range dirs {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		typ := readTrim(filepath.Join(d, "type"))
		switch typ {
		case "wlan", "bluetooth", "wwan", "gps", "nfc":
		default:
			continue
		}
		radios++
		if readTrim(filepath.Join(d, "soft")) != "1" && readTrim(filepath.Join(d, "hard")) != "1" {
			return false, nil
		}
	}
	if radios == 0 {
		return false, ErrUndetectable
	}
	return true, nil
}

// Earphones reports true when any extcon device has a headphone or headset
// cable attached.
func (p NativeProbe) Earphones(ctx context.Context) (bool, error) {
	states, err := filepath.Glob(p.sys("extcon", "*", "state"))
	if err != nil {
		return false, err
	}
	if len(states) == 0 {
		return false, ErrUndetectable
	}
	for _, st := range states {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		f, err := os.Open(st)
		if err != nil {
			continue
		}
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			name, val, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
			if !ok || val != "1" {
				continue
			}
			switch strings.ToUpper(name) {
			case "HEADPHONE", "HEADSET", "LINE-OUT":
				_ = f.Close()
				return true, nil
			}
		}
		_ = f.Close()
	}
	return false, nil
}

func readTrim(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
