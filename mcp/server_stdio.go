package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/codes"

	"github.com/shaharia-lab/timemcp/observability"
)

// StdIOServer serves the protocol over standard input/output. Messages are
// newline-delimited JSON and are processed strictly in arrival order, so
// responses always come back in request order.
type StdIOServer struct {
	*BaseServer
	in  io.Reader
	out io.Writer
}

// NewStdIOServer creates a new StdIOServer.
func NewStdIOServer(baseServer *BaseServer, in io.Reader, out io.Writer) *StdIOServer {
	s := &StdIOServer{
		BaseServer: baseServer,
		in:         in,
		out:        out,
	}

	// Set the concrete send methods for StdIOServer.
	s.sendResp = s.sendResponse
	s.sendErr = s.sendError
	s.sendNoti = s.sendNotification

	return s
}

// sendResponse sends a JSON-RPC response (StdIO implementation).
func (s *StdIOServer) sendResponse(clientID string, id *json.RawMessage, result interface{}, err *Error) {
	response := Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
		Error:   err,
	}
	s.writeLine(EncodeResponse(&response))
}

// sendError sends a JSON-RPC error response (StdIO implementation). A nil id
// serializes as null, which is what parse failures require.
func (s *StdIOServer) sendError(clientID string, id *json.RawMessage, code int, message string, data interface{}) {
	s.writeLine(EncodeResponse(NewErrorResponse(id, code, message, data)))
}

// sendNotification sends a JSON-RPC notification (StdIO implementation).
func (s *StdIOServer) sendNotification(clientID string, method string, params interface{}) {
	notification := Notification{
		JSONRPC: JSONRPCVersion,
		Method:  method,
	}
	if params != nil {
		paramsBytes, err := json.Marshal(params)
		if err != nil {
			s.logger.WithErr(err).Error("Failed to marshal notification parameters")
			return
		}
		notification.Params = paramsBytes
	}

	jsonNotification, err := json.Marshal(notification)
	if err != nil {
		s.logger.WithErr(err).Error("Failed to marshal notification message")
		return
	}
	s.writeLine(jsonNotification)
}

func (s *StdIOServer) writeLine(message []byte) {
	message = append(message, '\n')
	if _, err := s.out.Write(message); err != nil {
		s.logger.WithErr(err).Error("Failed to write message")
	}
}

// Run starts the StdIOServer, reading and processing messages from stdin.
// It returns nil on EOF and ctx.Err() on cancellation. The blocked read
// itself cannot be interrupted; after cancellation any further input is
// dropped, and closing the input stream releases the reader.
func (s *StdIOServer) Run(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "StdIOServer.Run")
	defer span.End()

	var err error
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	s.markStarted()

	scanner := bufio.NewScanner(s.in)
	buffer := make([]byte, 0, 64*1024)
	scanner.Buffer(buffer, 1024*1024)

	done := make(chan error, 1)

	go func() {
		for scanner.Scan() {
			// The blocking read cannot be interrupted, so cancellation
			// takes effect here: a line arriving after the context died
			// is dropped, never handled or answered.
			if ctx.Err() != nil {
				done <- ctx.Err()
				return
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			// One message at a time. Ordering is part of the contract,
			// so there is no per-request concurrency here.
			s.HandleMessage(ctx, "", line)
		}
		if scanErr := scanner.Err(); scanErr != nil && scanErr != io.EOF {
			done <- fmt.Errorf("scanner error: %w", scanErr)
			return
		}
		done <- nil
	}()

	select {
	case <-ctx.Done():
		s.logger.Debug("Context cancelled, StdIOServer shutting down...")
		return ctx.Err()
	case err = <-done:
		s.logger.WithErr(err).Debug("StdIOServer shutting down.")
		return err
	}
}
