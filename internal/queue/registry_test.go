package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinitions() []Definition {
	return []Definition{
		{Name: Default, Queue: "review_photos", Route: "/add-job"},
		{Name: ProfileImage, Queue: "profile_images", Route: "/add-profile-image-job"},
	}
}

func TestNewRegistry(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func([]Definition) []Definition
		errString string
	}{
		{
			name:   "valid",
			mutate: func(d []Definition) []Definition { return d },
		},
		{
			name: "unknown logical name",
			mutate: func(d []Definition) []Definition {
				return append(d, Definition{Name: "thumbnails", Queue: "thumbs", Route: "/thumbs"})
			},
			errString: "unknown queue name",
		},
		{
			name:      "missing queue",
			mutate:    func(d []Definition) []Definition { return d[:1] },
			errString: `queue "profile_image" is not configured`,
		},
		{
			name: "duplicate logical name",
			mutate: func(d []Definition) []Definition {
				return append(d, Definition{Name: Default, Queue: "other", Route: "/other"})
			},
			errString: "registered twice",
		},
		{
			name: "shared broker queue",
			mutate: func(d []Definition) []Definition {
				d[1].Queue = d[0].Queue
				return d
			},
			errString: "share broker queue",
		},
		{
			name: "shared route",
			mutate: func(d []Definition) []Definition {
				d[1].Route = d[0].Route
				return d
			},
			errString: "share route",
		},
		{
			name: "empty broker queue",
			mutate: func(d []Definition) []Definition {
				d[0].Queue = ""
				return d
			},
			errString: "broker queue is required",
		},
		{
			name: "relative route",
			mutate: func(d []Definition) []Definition {
				d[0].Route = "add-job"
				return d
			},
			errString: "route must start with",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := NewRegistry(tt.mutate(validDefinitions()))
			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, reg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, reg)
		})
	}
}

func TestRegistry_Accessors(t *testing.T) {
	reg, err := NewRegistry(validDefinitions())
	require.NoError(t, err)

	d, ok := reg.Lookup(ProfileImage)
	require.True(t, ok)
	assert.Equal(t, "profile_images", d.Queue)
	assert.Equal(t, "/add-profile-image-job", d.Route)

	_, ok = reg.Lookup("nope")
	assert.False(t, ok)

	assert.Equal(t, []string{"review_photos", "profile_images"}, reg.BrokerQueues())

	defs := reg.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, Default, defs[0].Name)
	assert.Equal(t, ProfileImage, defs[1].Name)
}

func TestParseName(t *testing.T) {
	n, err := ParseName(" profile_image ")
	require.NoError(t, err)
	assert.Equal(t, ProfileImage, n)

	_, err = ParseName("myQueue")
	assert.ErrorIs(t, err, ErrUnknownQueue)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Job
		wantErr error
	}{
		{
			name: "valid",
			body: `{"review_id":"rev-42","image_url":"http://img/a.jpg"}`,
			want: Job{ReviewID: "rev-42", ImageURL: "http://img/a.jpg"},
		},
		{name: "missing review id", body: `{"image_url":"http://img/a.jpg"}`, wantErr: ErrMissingField},
		{name: "blank image url", body: `{"review_id":"rev-42","image_url":"  "}`, wantErr: ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := Decode([]byte("not json"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "failed to decode job")
}

func TestEncode(t *testing.T) {
	body, err := Encode(Job{ReviewID: "rev-42", ImageURL: "http://img/a.jpg"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"review_id":"rev-42","image_url":"http://img/a.jpg"}`, string(body))
}
