package connection

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

const ftpTimeout = 30 * time.Second

// FTPConnection talks to the z/OS FTP server. The server connection is not
// safe for concurrent use, so neither is this type.
type FTPConnection struct {
	host     string
	port     int
	user     string
	password string
	conn     *ftp.ServerConn

	// wire captures the control and data traffic. z/OS member listings are
	// not in a format the ftp package can parse, so they are read from here.
	wire bytes.Buffer
}

func NewFTPConnection(host string, port int, user, password string) *FTPConnection {
	return &FTPConnection{
		host:     host,
		port:     port,
		user:     user,
		password: password,
	}
}

func (f *FTPConnection) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", f.host, f.port)

	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(ftpTimeout),
		ftp.DialWithDebugOutput(&f.wire))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	if err := conn.Login(f.user, f.password); err != nil {
		conn.Quit()
		return fmt.Errorf("login failed: %w", err)
	}
	// Drop the login exchange; it contains the password.
	f.wire.Reset()

	f.conn = conn
	return nil
}

func (f *FTPConnection) Close() error {
	if f.conn != nil {
		err := f.conn.Quit()
		f.conn = nil
		f.wire.Reset()
		if err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	return nil
}

// ready checks the connection before a command. The ftp package has no
// context support past dialing, so cancellation is honoured between
// commands only.
func (f *FTPConnection) ready(ctx context.Context) error {
	if f.conn == nil {
		return ErrNotConnected
	}
	return ctx.Err()
}

func (f *FTPConnection) ListDatasets(ctx context.Context, pattern string) ([]string, error) {
	if err := f.ready(ctx); err != nil {
		return nil, err
	}

	// z/OS FTP: list datasets matching pattern (e.g., 'USERNAME.*')
	query := fmt.Sprintf("'%s.*'", unquote(pattern))
	entries, err := f.conn.NameList(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}

	var datasets []string
	for _, e := range entries {
		name := strings.TrimSpace(e)
		if name != "" {
			datasets = append(datasets, name)
		}
	}
	return datasets, nil
}

func (f *FTPConnection) ListMembers(ctx context.Context, dataset string) ([]Member, error) {
	if err := f.ready(ctx); err != nil {
		return nil, err
	}

	dsn := unquote(dataset)
	cwd, err := f.conn.CurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	if err := f.conn.ChangeDir(fmt.Sprintf("'%s'", dsn)); err != nil {
		return nil, fmt.Errorf("failed to access dataset %s: %w", dsn, err)
	}
	defer f.conn.ChangeDir(cwd)

	f.wire.Reset()
	// List fails to parse the PDS directory format; the raw lines are on the wire.
	f.conn.List("")
	listing := listingSection(f.wire.String())
	f.wire.Reset()

	return parseMemberList(strings.NewReader(listing))
}

// listingSection returns the lines between "125 List started" and
// "250 List completed" in a captured exchange.
func listingSection(wire string) string {
	var sb strings.Builder
	inList := false
	for _, line := range strings.Split(wire, "\n") {
		if strings.Contains(line, "125 List started") {
			inList = true
			continue
		}
		if strings.Contains(line, "250 List completed") {
			break
		}
		if inList {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func parseMemberList(r io.Reader) ([]Member, error) {
	var members []Member
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip header line
		if strings.HasPrefix(line, "Name") && strings.Contains(line, "VV.MM") {
			continue
		}
		if line == "" {
			continue
		}

		member := parseMemberLine(line)
		if member.Name != "" {
			members = append(members, member)
		}
	}

	return members, scanner.Err()
}

func parseMemberLine(line string) Member {
	// Format: Name     VV.MM   Created       Changed      Size  Init   Mod   Id
	// Example: HSISAPIE  01.82 2024/04/16 2025/12/10 20:18     5    27     0 FALZONE
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return Member{}
	}

	m := Member{Name: fields[0]}

	if vvmm := strings.Split(fields[1], "."); len(vvmm) == 2 {
		m.VV, _ = strconv.Atoi(vvmm[0])
		m.MM, _ = strconv.Atoi(vvmm[1])
	}

	m.Created = fields[2]
	m.Changed = fields[3] + " " + fields[4]
	m.Size, _ = strconv.Atoi(fields[5])
	m.Init, _ = strconv.Atoi(fields[6])
	m.Mod, _ = strconv.Atoi(fields[7])
	if len(fields) >= 9 {
		m.User = fields[8]
	}

	return m
}

func memberTarget(dataset, member string) string {
	return fmt.Sprintf("'%s(%s)'", unquote(dataset), strings.ToUpper(member))
}

func (f *FTPConnection) ReadMember(ctx context.Context, dataset, member string) ([]byte, error) {
	return f.retrieve(ctx, memberTarget(dataset, member))
}

func (f *FTPConnection) WriteMember(ctx context.Context, dataset, member string, content []byte) error {
	return f.store(ctx, memberTarget(dataset, member), content)
}

func (f *FTPConnection) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return f.retrieve(ctx, path)
}

func (f *FTPConnection) WriteFile(ctx context.Context, path string, content []byte) error {
	return f.store(ctx, path, content)
}

func (f *FTPConnection) retrieve(ctx context.Context, target string) ([]byte, error) {
	if err := f.ready(ctx); err != nil {
		return nil, err
	}

	// ASCII mode makes the server convert from EBCDIC
	if err := f.conn.Type(ftp.TransferTypeASCII); err != nil {
		return nil, fmt.Errorf("failed to set ASCII mode: %w", err)
	}

	reader, err := f.conn.Retr(target)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", target, err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *FTPConnection) store(ctx context.Context, target string, content []byte) error {
	if err := f.ready(ctx); err != nil {
		return err
	}

	if err := f.conn.Type(ftp.TransferTypeASCII); err != nil {
		return fmt.Errorf("failed to set ASCII mode: %w", err)
	}
	if err := f.conn.Stor(target, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}

var _ Connection = (*FTPConnection)(nil)
