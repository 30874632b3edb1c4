package music

import "testing"

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "native backend",
			config: Config{AudioBackend: BackendNative},
		},
		{
			name: "lavalink backend with credentials",
			config: Config{
				AudioBackend:     BackendLavalink,
				LavalinkAddress:  "localhost:2333",
				LavalinkPassword: "youshallnotpass",
			},
		},
		{
			name:    "lavalink backend missing address",
			config:  Config{AudioBackend: BackendLavalink, LavalinkPassword: "pw"},
			wantErr: true,
		},
		{
			name:    "lavalink backend missing password",
			config:  Config{AudioBackend: BackendLavalink, LavalinkAddress: "localhost:2333"},
			wantErr: true,
		},
		{
			name:    "unknown backend",
			config:  Config{AudioBackend: "gramophone"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
