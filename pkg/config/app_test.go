package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const validAppYAML = `
database:
  datetime_format: "02.01.2006 15:04"
  date_format: "02.01.2006"
  time_format: "15:04"
subscription:
  test_period_in_days: 3
admins:
  ids: [100200300]
admin_chat:
  id: -100500
files:
  welcome_image: "AgACAgIAAxkBAAIB"
payments:
  prodamus_secret_key: "secret"
  prodamus_payment_link: "https://example.payform.ru/"
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "astrobot.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadApp(t *testing.T) {
	app, err := LoadApp(writeTemp(t, validAppYAML))
	require.NoError(t, err)
	require.Equal(t, "02.01.2006 15:04", app.Database.DatetimeFormat)
	require.Equal(t, 3, app.Subscription.TestPeriodInDays)
	require.Equal(t, []int64{100200300}, app.Admins.IDs)
	require.Equal(t, int64(-100500), app.AdminChat.ID)
	require.Equal(t, "AgACAgIAAxkBAAIB", app.Files["welcome_image"])
}

func TestLoadAppMissingKeyFails(t *testing.T) {
	broken := `
database:
  datetime_format: "02.01.2006 15:04"
  date_format: "02.01.2006"
subscription:
  test_period_in_days: 3
admins:
  ids: [1]
admin_chat:
  id: 5
payments:
  prodamus_secret_key: "secret"
  prodamus_payment_link: "https://example.payform.ru/"
`
	_, err := LoadApp(writeTemp(t, broken))
	require.Error(t, err)
	require.Contains(t, err.Error(), "time_format")
}

func TestLoadAppBadPaymentLink(t *testing.T) {
	bad := strings.Replace(validAppYAML, `"https://example.payform.ru/"`, `"not a url"`, 1)
	_, err := LoadApp(writeTemp(t, bad))
	require.Error(t, err)
}

func TestLoadAppMissingFile(t *testing.T) {
	_, err := LoadApp(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
}
