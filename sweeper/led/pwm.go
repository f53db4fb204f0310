package led

import "errors"

// PWMSlice is the subset of a configured TinyGo PWM peripheral
// (machine.PWM0..PWM7 on the RP2040) needed to drive an LED.
type PWMSlice interface {
	Set(channel uint8, value uint32)
	Top() uint32
}

// PWMOutput scales a 0..MaxDuty duty onto a PWM slice channel.
type PWMOutput struct {
	Slice   PWMSlice
	Channel uint8
}

// SetDuty implements DutySetter.
func (o PWMOutput) SetDuty(duty uint32) error {
	if o.Slice == nil {
		return errors.New("pwm slice not configured")
	}
	if duty > MaxDuty {
		duty = MaxDuty
	}
	o.Slice.Set(o.Channel, scale(duty, o.Slice.Top()))
	return nil
}

func scale(duty, top uint32) uint32 {
	return uint32(uint64(duty) * uint64(top) / MaxDuty)
}
