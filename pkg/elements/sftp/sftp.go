// Package sftp implements conduit.SftpList and conduit.SftpDownload
// on top of github.com/pkg/sftp paired with golang.org/x/crypto/ssh:
// open one ssh.Client, wrap it in an *sftp.Client, and drive it per
// call.
package sftp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cenkalti/backoff/v4"
	pkgsftp "github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/iter"
	"github.com/conduit-run/conduit/pkg/registry"
	"github.com/conduit-run/conduit/pkg/schema"
)

func init() {
	registry.Register(element.Descriptor{
		ID: "conduit.SftpList",
		Summary: "Enumerates a remote SFTP path, optionally filtering by `glob` and walking " +
			"subdirectories when `recursive` is set.",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "host", Type: schema.TypeString},
			{Name: "user", Type: schema.TypeString},
			{Name: "password", Type: schema.TypeString, Optional: true},
			{Name: "remote_dir", Type: schema.TypeString},
			{Name: "glob", Type: schema.TypeString, Optional: true},
			{Name: "recursive", Type: schema.TypeBoolean, Optional: true, Default: false},
		}},
		OutputShape: "object {path, name, size, is_dir}",
		New:         newSftpList,
	})

	registry.Register(element.Descriptor{
		ID: "conduit.SftpDownload",
		Summary: "Downloads either a string remote path or an SftpList-shaped item, materializing it " +
			"per `download_mode` (memory, temp, local).",
		Params: &schema.Input{Fields: []schema.Field{
			{Name: "host", Type: schema.TypeString},
			{Name: "user", Type: schema.TypeString},
			{Name: "password", Type: schema.TypeString, Optional: true},
			{Name: "local_dir", Type: schema.TypeString, Optional: true},
			{Name: "download_mode", Type: schema.TypeString, Optional: true, Default: "local"},
		}},
		Input:       schema.Unstructured,
		OutputShape: "object {remote_path, local_path?, content?}",
		New:         newSftpDownload,
	})
}

func dial(host, user, password string) (*ssh.Client, *pkgsftp.Client, error) {
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	conn, err := ssh.Dial("tcp", withDefaultPort(host), config)
	if err != nil {
		return nil, nil, err
	}
	client, err := pkgsftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, client, nil
}

func withDefaultPort(host string) string {
	for _, c := range host {
		if c == ':' {
			return host
		}
	}
	return fmt.Sprintf("%s:22", host)
}

// List is conduit.SftpList.
type List struct {
	element.Base
	host, user, password, remoteDir, glob string
	recursive                             bool
}

func newSftpList(ctx element.BuildContext) (element.Element, error) {
	host, _ := ctx.Args["host"].(string)
	user, _ := ctx.Args["user"].(string)
	password, _ := ctx.Args["password"].(string)
	remoteDir, _ := ctx.Args["remote_dir"].(string)
	if host == "" || user == "" || remoteDir == "" {
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.SftpList requires `host`, `user`, `remote_dir`")
	}
	glob, _ := ctx.Args["glob"].(string)
	recursive, _ := ctx.Args["recursive"].(bool)
	return &List{
		Base: element.NewBase("conduit.SftpList", ctx.StageIndex),
		host: host, user: user, password: password, remoteDir: remoteDir,
		glob: glob, recursive: recursive,
	}, nil
}

func (l *List) walk(client *pkgsftp.Client, dir string, vals *[]any) error {
	entries, err := client.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		full := path.Join(dir, e.Name())
		if l.recursive && e.IsDir() {
			if err := l.walk(client, full, vals); err != nil {
				return err
			}
			continue
		}
		if l.glob != "" {
			if ok, _ := doublestar.Match(l.glob, e.Name()); !ok {
				continue
			}
		}
		*vals = append(*vals, map[string]any{
			"path": full, "name": e.Name(), "size": e.Size(), "is_dir": e.IsDir(),
		})
	}
	return nil
}

func (l *List) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	conn, client, err := dial(l.host, l.user, l.password)
	if err != nil {
		return nil, conduiterr.Wrap(conduiterr.KindResource, err, "conduit.SftpList: connect to %q", l.host)
	}
	defer conn.Close()
	defer client.Close()

	var vals []any
	if err := l.walk(client, l.remoteDir, &vals); err != nil {
		return nil, conduiterr.Wrap(conduiterr.KindResource, err, "conduit.SftpList: walk %q", l.remoteDir)
	}
	return iter.FromSlice(vals), nil
}

func (l *List) Close() error { return nil }

// Download is conduit.SftpDownload.
type Download struct {
	element.Base
	host, user, password, localDir, downloadMode string
}

func newSftpDownload(ctx element.BuildContext) (element.Element, error) {
	host, _ := ctx.Args["host"].(string)
	user, _ := ctx.Args["user"].(string)
	password, _ := ctx.Args["password"].(string)
	localDir, _ := ctx.Args["local_dir"].(string)
	downloadMode, ok := ctx.Args["download_mode"].(string)
	if !ok || downloadMode == "" {
		downloadMode = "local"
	}
	if host == "" || user == "" {
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.SftpDownload requires `host`, `user`")
	}
	if downloadMode == "local" && localDir == "" {
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.SftpDownload requires `local_dir` when `download_mode` is \"local\"")
	}
	switch downloadMode {
	case "memory", "temp", "local":
	default:
		return nil, conduiterr.New(conduiterr.KindSchemaMismatch, "conduit.SftpDownload: unknown `download_mode` %q", downloadMode)
	}
	return &Download{
		Base: element.NewBase("conduit.SftpDownload", ctx.StageIndex),
		host: host, user: user, password: password, localDir: localDir, downloadMode: downloadMode,
	}, nil
}

// dialWithRetry wraps dial with a short exponential backoff: an
// initial connect failure (a server mid-restart, a flaky link) is
// treated as transient rather than fatal, the same judgment
// conduit.RestApi makes for its fetch.
func dialWithRetry(ctx context.Context, host, user, password string) (*ssh.Client, *pkgsftp.Client, error) {
	var conn *ssh.Client
	var client *pkgsftp.Client
	connect := func() error {
		c, cl, err := dial(host, user, password)
		if err != nil {
			return err
		}
		conn, client = c, cl
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(connect, backoff.WithContext(policy, ctx)); err != nil {
		return nil, nil, err
	}
	return conn, client, nil
}

func (d *Download) Open(ctx context.Context, upstream iter.Iterator) (iter.Iterator, error) {
	conn, client, err := dialWithRetry(ctx, d.host, d.user, d.password)
	if err != nil {
		return nil, conduiterr.Wrap(conduiterr.KindResource, err, "conduit.SftpDownload: connect to %q", d.host)
	}

	return &downloadIterator{client: client, conn: conn, upstream: upstream, localDir: d.localDir, mode: d.downloadMode}, nil
}

type downloadIterator struct {
	client   *pkgsftp.Client
	conn     *ssh.Client
	upstream iter.Iterator
	localDir string
	mode     string
}

// remotePathOf accepts either a bare string remote path or an
// SftpList-shaped {path, name, ...} record.
func remotePathOf(item any) (string, error) {
	switch v := item.(type) {
	case string:
		return v, nil
	case map[string]any:
		if p, ok := v["path"].(string); ok && p != "" {
			return p, nil
		}
		return "", conduiterr.New(conduiterr.KindItem, "conduit.SftpDownload: item missing `path`")
	default:
		return "", conduiterr.New(conduiterr.KindItem, "conduit.SftpDownload: item is neither a string nor an object (got %T)", item)
	}
}

func (d *downloadIterator) Next(ctx context.Context) (any, bool, error) {
	item, ok, err := d.upstream.Next(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}
	remotePath, err := remotePathOf(item)
	if err != nil {
		return nil, false, err
	}

	remote, err := d.client.Open(remotePath)
	if err != nil {
		return nil, false, conduiterr.Wrap(conduiterr.KindResource, err, "conduit.SftpDownload: open %q", remotePath)
	}
	defer remote.Close()

	switch d.mode {
	case "memory":
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, remote); err != nil {
			return nil, false, conduiterr.Wrap(conduiterr.KindResource, err, "conduit.SftpDownload: copy %q", remotePath)
		}
		return map[string]any{"remote_path": remotePath, "content": buf.Bytes()}, true, nil

	case "temp":
		local, err := os.CreateTemp("", "conduit-sftp-*-"+filepath.Base(remotePath))
		if err != nil {
			return nil, false, conduiterr.Wrap(conduiterr.KindResource, err, "conduit.SftpDownload: create temp file")
		}
		defer local.Close()
		if _, err := io.Copy(local, remote); err != nil {
			return nil, false, conduiterr.Wrap(conduiterr.KindResource, err, "conduit.SftpDownload: copy %q", remotePath)
		}
		return map[string]any{"remote_path": remotePath, "local_path": local.Name()}, true, nil

	default: // "local"
		localPath := filepath.Join(d.localDir, filepath.Base(remotePath))
		if err := os.MkdirAll(d.localDir, 0o755); err != nil {
			return nil, false, conduiterr.Wrap(conduiterr.KindResource, err, "conduit.SftpDownload: mkdir %q", d.localDir)
		}
		local, err := os.Create(localPath)
		if err != nil {
			return nil, false, conduiterr.Wrap(conduiterr.KindResource, err, "conduit.SftpDownload: create %q", localPath)
		}
		defer local.Close()
		if _, err := io.Copy(local, remote); err != nil {
			return nil, false, conduiterr.Wrap(conduiterr.KindResource, err, "conduit.SftpDownload: copy %q", remotePath)
		}
		return map[string]any{"remote_path": remotePath, "local_path": localPath}, true, nil
	}
}

func (d *downloadIterator) Close() error {
	err1 := d.client.Close()
	err2 := d.conn.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (d *Download) Close() error { return nil }
