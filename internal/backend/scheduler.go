package backend

// Scheduler is the caller-facing noise schedule choice. Each backend family
// supports a subset and maps it to its own native enum.
type Scheduler string

const (
	SchedulerPNDM                     Scheduler = "pndm"
	SchedulerDPMSolverMultistep       Scheduler = "dpm-solver-multistep"
	SchedulerDPMSolverMultistepKarras Scheduler = "dpm-solver-multistep-karras"
	SchedulerEulerAncestral           Scheduler = "euler-ancestral"
	SchedulerLCM                      Scheduler = "lcm"
	SchedulerDiscreteFlow             Scheduler = "discrete-flow"
)

var standardSchedulers = map[Scheduler]StandardScheduler{
	SchedulerPNDM:               StandardPNDM,
	SchedulerDPMSolverMultistep: StandardDPMSolverMultistep,
	SchedulerDiscreteFlow:       StandardDiscreteFlow,
}

var extendedSamplers = map[Scheduler]ExtendedSampler{
	SchedulerEulerAncestral:           SamplerEulerAncestral,
	SchedulerDPMSolverMultistep:       SamplerDPMPP2M,
	SchedulerDPMSolverMultistepKarras: SamplerDPMPP2MKarras,
	SchedulerLCM:                      SamplerLCM,
}

func standardScheduler(s Scheduler) (StandardScheduler, error) {
	v, ok := standardSchedulers[s]
	if !ok {
		return 0, unsupportedSchedulerError{scheduler: s, kind: KindStandard}
	}
	return v, nil
}

func extendedSampler(s Scheduler) (ExtendedSampler, error) {
	v, ok := extendedSamplers[s]
	if !ok {
		return "", unsupportedSchedulerError{scheduler: s, kind: KindExtended}
	}
	return v, nil
}

// CheckScheduler validates s against a backend family without loading anything.
func CheckScheduler(kind Kind, s Scheduler) error {
	var err error
	switch kind {
	case KindStandard:
		_, err = standardScheduler(s)
	case KindExtended:
		_, err = extendedSampler(s)
	default:
		err = unsupportedSchedulerError{scheduler: s, kind: kind}
	}
	return err
}

// Schedulers lists the choices supported by a family, in a stable order.
func Schedulers(kind Kind) []Scheduler {
	all := []Scheduler{
		SchedulerPNDM,
		SchedulerDPMSolverMultistep,
		SchedulerDPMSolverMultistepKarras,
		SchedulerEulerAncestral,
		SchedulerLCM,
		SchedulerDiscreteFlow,
	}
	var out []Scheduler
	for _, s := range all {
		if CheckScheduler(kind, s) == nil {
			out = append(out, s)
		}
	}
	return out
}
