package storage

import (
	"testing"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{"local", Config{Dir: dir}, "*storage.Local", false},
		{"local without dir", Config{Backend: BackendLocal}, "", true},
		{"memory", Config{Backend: BackendMemory}, "*storage.Memory", false},
		{"s3", Config{Backend: BackendS3, Bucket: "rec", Endpoint: "http://localhost:9000", PathStyle: true}, "*storage.S3Store", false},
		{"s3 without bucket", Config{Backend: BackendS3}, "", true},
		{"unknown", Config{Backend: "ftp"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			var got string
			switch s.(type) {
			case *Local:
				got = "*storage.Local"
			case *Memory:
				got = "*storage.Memory"
			case *S3Store:
				got = "*storage.S3Store"
			}
			if got != tt.want {
				t.Errorf("Open = %s, want %s", got, tt.want)
			}
		})
	}
}
