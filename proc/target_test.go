package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		target  string
		want    string
		wantErr bool
	}{
		{name: "bare port", target: "8042", want: "127.0.0.1:8042"},
		{name: "host and port", target: "10.0.0.5:9000", want: "10.0.0.5:9000"},
		{name: "localhost and port", target: "localhost:9000", want: "localhost:9000"},
		{name: "missing host", target: ":9000", want: "127.0.0.1:9000"},
		{name: "url with port", target: "tcp://127.0.0.1:8042", want: "127.0.0.1:8042"},
		{name: "ws url with port", target: "ws://localhost:7100", want: "localhost:7100"},
		{name: "empty", target: "", wantErr: true},
		{name: "url without port", target: "tcp://localhost", wantErr: true},
		{name: "port zero", target: "0", wantErr: true},
		{name: "port out of range", target: "70000", wantErr: true},
		{name: "bare hostname", target: "localhost", wantErr: true},
	}

	for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseTarget(tt.target)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
