// File: internal/dashcast/start.go
// Brief: Background start-up helper that surfaces early listen failures.

package dashcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// startGrace is how long Start waits for an early failure such as a busy port.
const startGrace = 250 * time.Millisecond

// Start runs srv in the background. A failure within the grace period is
// returned; later failures are logged and written to errOut.
func Start(ctx context.Context, srv *Server, errOut io.Writer) error {
	if srv == nil {
		return nil
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			if errOut != nil {
				fmt.Fprintf(errOut, "dashboard on %s failed: %v\n", srv.addr, err)
			}
			return err
		}
	case <-time.After(startGrace):
		go func() {
			for err := range errCh {
				srv.logger.Error(err, "dashboard exited", "addr", srv.addr)
				if errOut != nil {
					fmt.Fprintf(errOut, "dashboard on %s exited: %v\n", srv.addr, err)
				}
			}
		}()
	}
	return nil
}
