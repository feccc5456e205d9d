package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrGraphIntegrity indicates a cycle, an undeclared component or an invalid transfer.
	ErrGraphIntegrity = errors.New("graph integrity error")
	// ErrPlacementLookup indicates a component referenced by a transfer was never placed.
	ErrPlacementLookup = errors.New("placement lookup error")
	// ErrPlateOverflow indicates a write past the last well of a plate.
	ErrPlateOverflow = errors.New("plate overflow")
	// ErrResourceExhausted indicates a plate family grew past its configured limit.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrInvalidWell indicates a malformed or out-of-range well name.
	ErrInvalidWell = errors.New("invalid well")
	// ErrWellOccupied indicates an explicit write to a well holding another record.
	ErrWellOccupied = errors.New("well occupied")
)

// Graph integrity kinds.
const (
	IntegrityCycle          = "cycle"
	IntegrityUndeclared     = "undeclared_component"
	IntegrityInvalidVolume  = "invalid_volume"
	IntegrityNoRoots        = "no_roots"
	IntegrityEmptyComponent = "empty_component"
)

// GraphIntegrityError reports a structural problem in a reaction graph.
type GraphIntegrityError struct {
	Kind      string
	Component string
	Msg       string
}

func (e *GraphIntegrityError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s: %s: %s (%s)", ErrGraphIntegrity, e.Kind, e.Msg, e.Component)
	}
	return fmt.Sprintf("%s: %s: %s", ErrGraphIntegrity, e.Kind, e.Msg)
}

func (e *GraphIntegrityError) Unwrap() error { return ErrGraphIntegrity }

// PlacementLookupError names a component without any recorded well.
type PlacementLookupError struct {
	Component string
}

func (e *PlacementLookupError) Error() string {
	return fmt.Sprintf("%s: component %q has not been placed on any plate", ErrPlacementLookup, e.Component)
}

func (e *PlacementLookupError) Unwrap() error { return ErrPlacementLookup }

// PlateOverflowError is raised when a plate has no room left for a write.
type PlateOverflowError struct {
	Plate string
	Size  int
}

func (e *PlateOverflowError) Error() string {
	return fmt.Sprintf("%s: plate %s is full (%d wells)", ErrPlateOverflow, e.Plate, e.Size)
}

func (e *PlateOverflowError) Unwrap() error { return ErrPlateOverflow }

// ResourceExhaustedError is raised when overflow spillover hits the family cap.
type ResourceExhaustedError struct {
	Family string
	Limit  int
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("%s: plate family %s exceeded %d plates", ErrResourceExhausted, e.Family, e.Limit)
}

func (e *ResourceExhaustedError) Unwrap() error { return ErrResourceExhausted }
