package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// Relay copies bytes between left and right in both directions and returns
// once both directions have finished.
//
// When one direction reaches EOF the write side of its destination is shut
// down so the peer sees EOF too. Canceling ctx closes both connections.
// Errors that merely signal teardown (EOF, reset, broken pipe, closed
// connection) are not returned. Relay closes nothing on a normal return;
// the caller owns both connections.
func Relay(ctx context.Context, left, right net.Conn) error {
	g := errgroup.Group{}

	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = left.Close()
			_ = right.Close()
		})
	}

	// If the context is canceled, close both sides to unblock the reads.
	stop := context.AfterFunc(ctx, closeBoth)
	defer stop()

	g.Go(func() error {
		return relayHalf(right, left)
	})

	g.Go(func() error {
		return relayHalf(left, right)
	})

	return g.Wait()
}

// relayHalf copies src to dst and then half-closes dst.
func relayHalf(dst, src net.Conn) error {
	err := copyChunks(dst, src)
	closeWrite(dst)
	if isTeardown(err) {
		return nil
	}
	return err
}

// copyChunks writes every chunk read from src to dst as soon as it arrives.
func copyChunks(dst io.Writer, src io.Reader) error {
	bp := relayBuffers.Get()
	defer relayBuffers.Put(bp)
	buf := *bp

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			return rerr
		}
	}
}

func closeWrite(c net.Conn) {
	type closeWriter interface {
		CloseWrite() error
	}
	if cw, ok := c.(closeWriter); ok {
		_ = cw.CloseWrite()
		return
	}
	_ = c.Close()
}

// isTeardown reports whether err is an expected end-of-connection error.
func isTeardown(err error) bool {
	return err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, os.ErrDeadlineExceeded)
}
