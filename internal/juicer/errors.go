package juicer

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is a startup misconfiguration. Nothing recovers from it.
	ErrConfig = errors.New("invalid configuration")

	// ErrRender covers every failure to get markup out of the page.
	ErrRender           = errors.New("render failed")
	ErrNavigationFailed = fmt.Errorf("%w: navigation failed", ErrRender)
	ErrFeedNotReady     = fmt.Errorf("%w: feed not ready", ErrRender)

	ErrParse = errors.New("unreadable markup")

	// ErrStore covers every failure talking to the document store.
	ErrStore            = errors.New("store failure")
	ErrStoreUnavailable = fmt.Errorf("%w: store unavailable", ErrStore)
	ErrStoreWrite       = fmt.Errorf("%w: write failed", ErrStore)
)
