package main

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// startGreetingSMTP accepts connections and answers just enough SMTP for a dial check.
func startGreetingSMTP(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				r := bufio.NewReader(conn)
				fmt.Fprintf(conn, "220 localhost ready\r\n")
				for {
					line, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if strings.HasPrefix(line, "QUIT") {
						fmt.Fprintf(conn, "221 Bye\r\n")
						return
					}
					fmt.Fprintf(conn, "250 OK\r\n")
				}
			}(conn)
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func newSQLiteStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "novedades.db")
	db, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE pem_novedades (
		id INTEGER PRIMARY KEY, novedad TEXT, descripcion TEXT, fecha_inicio DATETIME, fecha_fin DATETIME,
		icono TEXT, habilitado BOOLEAN, id_usuario INTEGER, "createdAt" DATETIME, "updatedAt" DATETIME,
		forzar_visualizacion BOOLEAN, link TEXT, imagen TEXT, email TEXT, email_enviado BOOLEAN, usuario TEXT)`)
	require.NoError(t, err)
	return path
}

func setValidEnv(t *testing.T, dbPath string, smtpPort int) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", dbPath)
	t.Setenv("DB_PENDING_SOURCE", "pem_novedades")
	t.Setenv("SMTP_HOST", "127.0.0.1")
	t.Setenv("SMTP_PORT", strconv.Itoa(smtpPort))
	t.Setenv("SMTP_USER", "")
	t.Setenv("MAIL_SENDER_ADDRESS", "pem@example.com")
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("METRICS_ADDR", "")
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := NewRootCommand(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand(&bytes.Buffer{})
	for _, name := range []string{"serve", "once", "check"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestCheck_InvalidConfiguration(t *testing.T) {
	setValidEnv(t, "unused", 25)
	t.Setenv("DATABASE_URL", "")

	out, err := execute("check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, out, "Could not load application configuration")
}

func TestCheck_MailTransportUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	setValidEnv(t, newSQLiteStore(t), port)

	out, err := execute("check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mail transport check failed")
	assert.Contains(t, out, "Database connection OK")
}

func TestCheck_OK(t *testing.T) {
	setValidEnv(t, newSQLiteStore(t), startGreetingSMTP(t))

	out, err := execute("check")
	require.NoError(t, err)
	assert.Contains(t, out, "Mail transport configuration verified")
	assert.True(t, strings.HasSuffix(out, "OK\n"))
}

func TestOnce_EmptyStore(t *testing.T) {
	setValidEnv(t, newSQLiteStore(t), startGreetingSMTP(t))

	out, err := execute("once")
	require.NoError(t, err)
	assert.Contains(t, out, "0 pending, 0 sent, 0 still pending")
}

func TestCheck_DatabaseUnreachable(t *testing.T) {
	setValidEnv(t, filepath.Join(t.TempDir(), "missing", "novedades.db"), startGreetingSMTP(t))

	out, err := execute("check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not connect to database")
	assert.Contains(t, out, "Could not initialize components")
	assert.NotContains(t, out, "Mail transport configuration verified")
}
