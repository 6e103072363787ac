package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"zm/internal/connection"
	"zm/internal/editor"
	"zm/internal/zosmf"

	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit <dataset(member)> | <uss-path>",
	Short: "Edit a member or USS file",
	Long:  `Download a PDS member or USS file, open it in your editor, and upload changes.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

func init() {
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	_, conn, err := openConnection(ctx, "")
	if err != nil {
		return err
	}
	defer conn.Close()

	if path[0] == '/' {
		content, etag, err := readFileVersion(ctx, conn, path)
		if err != nil {
			return err
		}
		return editAndUpload(ctx, filepath.Base(path), path, content, func(modified []byte) error {
			return writeFileVersion(ctx, conn, path, modified, etag)
		})
	}

	dataset, member, err := parseDSN(path)
	if err != nil {
		return err
	}
	content, etag, err := readMemberVersion(ctx, conn, dataset, member)
	if err != nil {
		return err
	}
	label := fmt.Sprintf("%s(%s)", strings.ToUpper(dataset), strings.ToUpper(member))
	return editAndUpload(ctx, member, label, content, func(modified []byte) error {
		return writeMemberVersion(ctx, conn, dataset, member, modified, etag)
	})
}

// The helpers below guard the upload with the version that was read when
// the transport supports it. FTP has no such check.

func readMemberVersion(ctx context.Context, conn connection.Connection, dataset, member string) ([]byte, string, error) {
	if v, ok := conn.(connection.Versioned); ok {
		return v.ReadMemberVersion(ctx, dataset, member)
	}
	data, err := conn.ReadMember(ctx, dataset, member)
	return data, "", err
}

func writeMemberVersion(ctx context.Context, conn connection.Connection, dataset, member string, content []byte, etag string) error {
	if v, ok := conn.(connection.Versioned); ok {
		return v.WriteMemberVersion(ctx, dataset, member, content, etag)
	}
	return conn.WriteMember(ctx, dataset, member, content)
}

func readFileVersion(ctx context.Context, conn connection.Connection, path string) ([]byte, string, error) {
	if v, ok := conn.(connection.Versioned); ok {
		return v.ReadFileVersion(ctx, path)
	}
	data, err := conn.ReadFile(ctx, path)
	return data, "", err
}

func writeFileVersion(ctx context.Context, conn connection.Connection, path string, content []byte, etag string) error {
	if v, ok := conn.(connection.Versioned); ok {
		return v.WriteFileVersion(ctx, path, content, etag)
	}
	return conn.WriteFile(ctx, path, content)
}

// editAndUpload opens content in the user's editor and calls upload only if
// the file changed. When the upload loses to a concurrent change the edited
// copy is left in place and its path is part of the error.
func editAndUpload(ctx context.Context, name, label string, content []byte, upload func([]byte) error) error {
	tmpFile, err := writeTempFile(name, content)
	if err != nil {
		return err
	}
	keep := false
	defer func() {
		if !keep {
			os.Remove(tmpFile)
		}
	}()

	if err := editor.Open(ctx, tmpFile); err != nil {
		return err
	}

	modified, err := os.ReadFile(tmpFile)
	if err != nil {
		return fmt.Errorf("failed to read edited file: %w", err)
	}

	if bytes.Equal(content, modified) {
		fmt.Println("No changes, skipping upload")
		return nil
	}

	if err := upload(modified); err != nil {
		if errors.Is(err, zosmf.ErrConflict) {
			keep = true
			return fmt.Errorf("%s was changed by someone else, your edit is saved in %s: %w", label, tmpFile, err)
		}
		return err
	}
	fmt.Printf("Uploaded %s\n", label)
	return nil
}

func writeTempFile(name string, content []byte) (string, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		ext = ".txt"
	}
	prefix := strings.TrimSuffix(name, ext) + "-"

	f, err := os.CreateTemp("", prefix+"*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	f.Close()
	return f.Name(), nil
}
