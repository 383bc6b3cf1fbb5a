package miniostorage

import (
	"strings"
	"testing"

	"github.com/UnendingLoop/ScanDesk/internal/model"
	"github.com/stretchr/testify/require"
)

func TestContentKey(t *testing.T) {
	a := ContentKey("captures/", []byte("page-1"), model.PNG)
	b := ContentKey("captures/", []byte("page-1"), model.PNG)
	c := ContentKey("captures/", []byte("page-2"), model.PNG)

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.True(t, strings.HasPrefix(a, "captures/"))
	require.True(t, strings.HasSuffix(a, ".png"))
	require.Len(t, a, len("captures/")+64+len(".png"))

	require.True(t, strings.HasSuffix(ContentKey("", []byte("x"), model.JPEG), ".jpg"))
	require.Len(t, ContentKey("", []byte("x"), "application/pdf"), 64)
}
