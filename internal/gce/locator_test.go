package gce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstanceURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    InstanceLocator
		wantErr bool
	}{
		{
			name: "full selfLink",
			raw:  "https://compute.googleapis.com/compute/v1/projects/my-proj/zones/us-central1-a/instances/edge-1",
			want: InstanceLocator{Project: "my-proj", Zone: "us-central1-a", Name: "edge-1"},
		},
		{
			name: "bare resource path",
			raw:  "projects/my-proj/zones/europe-west4-b/instances/edge-2",
			want: InstanceLocator{Project: "my-proj", Zone: "europe-west4-b", Name: "edge-2"},
		},
		{
			name:    "region-scoped URL",
			raw:     "projects/my-proj/regions/us-central1/addresses/edge-1",
			wantErr: true,
		},
		{
			name:    "trailing slash",
			raw:     "projects/my-proj/zones/us-central1-a/instances/edge-1/",
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseInstanceURL(tt.raw)
			if tt.wantErr {
				var pe *ParseError
				require.ErrorAs(t, err, &pe)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegionFromZone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		zone    string
		want    string
		wantErr bool
	}{
		{zone: "us-central1-a", want: "us-central1"},
		{zone: "europe-west4-b", want: "europe-west4"},
		{zone: "asia-southeast2-c", want: "asia-southeast2"},
		{zone: "useast1", wantErr: true},
		{zone: "us-east1", wantErr: true}, // single dash: region name, not a zone
		{zone: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := regionFromZone(tt.zone)
		if tt.wantErr {
			var pe *ParseError
			require.ErrorAs(t, err, &pe, "zone %q", tt.zone)
			continue
		}
		require.NoError(t, err, "zone %q", tt.zone)
		assert.Equal(t, tt.want, got)
	}
}

func TestLocatorRegion(t *testing.T) {
	t.Parallel()

	loc := InstanceLocator{Project: "my-proj", Zone: "us-central1-a", Name: "edge-1"}
	region, err := loc.Region()
	require.NoError(t, err)
	assert.Equal(t, RegionLocator{Project: "my-proj", Region: "us-central1"}, region)
	assert.Equal(t, "my-proj/us-central1-a/edge-1", loc.String())
}
