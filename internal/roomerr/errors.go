package roomerr

import "errors"

var (
	ErrInputRejected       = errors.New("input rejected")
	ErrRateExceeded        = errors.New("rate exceeded")
	ErrPolicyViolation     = errors.New("policy violation")
	ErrActuatorFailure     = errors.New("enforcement actuator failed")
	ErrCollaboratorFailure = errors.New("text completion failed")
)
