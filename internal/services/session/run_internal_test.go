package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"dhke/internal/domain"
)

func TestTransportErr_Categories(t *testing.T) {
	d := &driver{ctx: context.Background()}
	cases := []struct {
		name string
		err  error
		want domain.Kind
	}{
		{"encode failure stays internal", fmt.Errorf("%w: nil integer", domain.ErrInternal), domain.KindInternal},
		{"protocol passes through", domain.ErrProtocolViolation, domain.KindProtocol},
		{"deadline", os.ErrDeadlineExceeded, domain.KindTimeout},
		{"eof", io.EOF, domain.KindNetwork},
		{"plain io error", errors.New("broken pipe"), domain.KindNetwork},
	}
	for _, tc := range cases {
		got := d.transportErr("send ServerHello", tc.err)
		if k := domain.KindOf(got); k != tc.want {
			t.Errorf("%s: kind %s, want %s (%v)", tc.name, k, tc.want, got)
		}
		if !errors.Is(got, tc.err) {
			t.Errorf("%s: cause lost: %v", tc.name, got)
		}
	}

	if got := d.transportErr("send", fmt.Errorf("%w: nil integer", domain.ErrInternal)); errors.Is(got, domain.ErrNetwork) {
		t.Fatalf("internal error relabelled as network: %v", got)
	}
}
