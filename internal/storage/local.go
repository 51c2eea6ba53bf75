// 원본 이미지 바이트를 로컬 디렉터리에 저장하는 Blob 저장소
//
// 파일명은 호출자가 생성하고 (pipeline의 blob 이름 규칙), 저장소는 이름을 URL로 바꿔 반환한다.
// 같은 이름으로 두 번 쓰면 덮어쓰지 않고 에러를 반환한다 (write-once).

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrInvalidName = errors.New("invalid blob name")

type LocalStore struct {
	dir       string
	urlPrefix string
}

// NewLocalStore - 저장 디렉터리를 만들고 저장소 생성
func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStore{
		dir:       dir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
	}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

// URLPrefix - 정규화된 URL prefix ("/" 로 시작, 끝 "/" 없음). 정적 파일 라우트에 그대로 사용한다.
func (s *LocalStore) URLPrefix() string {
	return s.urlPrefix
}

// Put - data를 dir/name에 쓰고 조회용 URL 반환
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	fullPath := filepath.Join(s.dir, name)
	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create blob %s: %w", name, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write blob %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to close blob %s: %w", name, err)
	}

	return path.Join(s.urlPrefix, name), nil
}
