package app

import (
	"fmt"
	"time"

	"github.com/danmuck/apptree/internal/observability"
	"github.com/danmuck/apptree/internal/sharedvalue"
)

// periodicUpdate calls Update at FrameRate until the shutdown flag reads
// true at the top of an iteration. A zero rate calls Update exactly once
// without consulting the flag. The loop is cooperative: an Update that
// never returns is never interrupted.
func periodicUpdate(a App) error {
	b := a.base()
	flag, err := b.shutdownFlag()
	if err != nil {
		return err
	}
	b.logger.Debug().Float64("frame_rate", b.FrameRate).Msg("periodic update")

	prev := time.Now()
	adjusted := prev
	for {
		if b.FrameRate != 0 {
			stop, err := sharedvalue.LoadBool(flag)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrNoShutdownFlag, err)
			}
			if stop {
				return nil
			}
		}

		now := time.Now()
		if err := guard(func() error { return a.Update(now.Sub(prev)) }); err != nil {
			return err
		}
		observability.RecordUpdate(b.name)
		prev = now

		switch {
		case b.FrameRate == 0:
			return nil
		case b.FrameRate > 0:
			adjusted = adjustFrameRate(b.FrameRate, adjusted)
		}
	}
}

// adjustFrameRate sleeps out the rest of one period measured from last and
// returns the new adjustment time.
func adjustFrameRate(rate float64, last time.Time) time.Time {
	period := time.Duration(float64(time.Second) / rate)
	if wait := period - time.Since(last); wait > 0 {
		time.Sleep(wait)
	}
	return time.Now()
}

func (b *Base) shutdownFlag() (sharedvalue.ValueCell, error) {
	v, err := b.GetProcessSharedValue(sharedvalue.ShutdownName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoShutdownFlag, err)
	}
	flag, ok := v.(sharedvalue.ValueCell)
	if !ok || flag.Kind() != sharedvalue.KindBool {
		return nil, fmt.Errorf("%w: %q holds %T", ErrNoShutdownFlag, sharedvalue.ShutdownName, v)
	}
	return flag, nil
}
