/*
Copyright © 2019 the Viewshed authors.
This file is part of Viewshed.

Viewshed is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Viewshed is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Viewshed.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cloud moves viewshed inputs and outputs between the local
// filesystem and remote storage.
package cloud

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// providers opens a bucket by name for each supported storage scheme.
var providers = map[string]func(ctx context.Context, name string) (*blob.Bucket, error){
	"file": func(_ context.Context, dir string) (*blob.Bucket, error) { return fileblob.OpenBucket(dir, nil) },
	"gs":   gcsBucket,
	"s3":   s3Bucket,
}

// defaultAWSRegion is used when AWS_REGION is not set.
const defaultAWSRegion = "us-east-2"

// IsBlob returns whether path is a location in blob storage
// (file://, gs:// or s3://).
func IsBlob(path string) bool {
	i := strings.Index(path, "://")
	if i < 0 {
		return false
	}
	_, ok := providers[path[:i]]
	return ok
}

// OpenBucket opens the bucket at location, which has the form
// 'provider://name'. Any path after the name is ignored.
func OpenBucket(ctx context.Context, location string) (*blob.Bucket, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("cloud: parsing storage location %q: %v", location, err)
	}
	open, ok := providers[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("cloud: unsupported storage provider %q in %q; use file://, gs:// or s3://", u.Scheme, location)
	}
	return open(ctx, u.Hostname())
}

// openObject opens the bucket holding the object at location and returns
// the key of the object.
func openObject(ctx context.Context, location string) (*blob.Bucket, string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, "", fmt.Errorf("cloud: parsing storage location %q: %v", location, err)
	}
	b, err := OpenBucket(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return nil, "", err
	}
	return b, strings.TrimPrefix(u.Path, "/"), nil
}

func gcsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloud: finding Google Cloud credentials: %v", err)
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, fmt.Errorf("cloud: creating Google Cloud client: %v", err)
	}
	return gcsblob.OpenBucket(ctx, c, name, nil)
}

// s3Bucket opens an S3 bucket with credentials from the AWS_ACCESS_KEY_ID
// and AWS_SECRET_ACCESS_KEY environment variables.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = defaultAWSRegion
	}
	s, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	})
	if err != nil {
		return nil, fmt.Errorf("cloud: creating AWS session: %v", err)
	}
	return s3blob.OpenBucket(ctx, s, name, nil)
}

// ExpandShp returns filename plus its .dbf, .shx and .prj siblings if
// filename has the .shp extension, and filename alone otherwise.
func ExpandShp(filename string) []string {
	o := []string{filename}
	if filepath.Ext(filename) != ".shp" {
		return o
	}
	for _, ext := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, strings.TrimSuffix(filename, ".shp")+ext)
	}
	return o
}

// MaybeDownload returns path unchanged if it is an existing local file
// or not a remote location. Otherwise it downloads the file (and the
// sidecar files of a shapefile) into a new temporary directory and
// returns the local path.
func MaybeDownload(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	switch {
	case strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://"):
		return downloadHTTP(ctx, path)
	case IsBlob(path):
		return downloadBlob(ctx, path)
	}
	return path, nil
}

func downloadHTTP(ctx context.Context, path string) (string, error) {
	dir, err := ioutil.TempDir("", "viewshed")
	if err != nil {
		return "", fmt.Errorf("cloud: creating download directory: %v", err)
	}
	fnames := ExpandShp(path)
	for i, fname := range fnames {
		req, err := http.NewRequest(http.MethodGet, fname, nil)
		if err != nil {
			return "", fmt.Errorf("cloud: downloading %s: %v", fname, err)
		}
		resp, err := http.DefaultClient.Do(req.WithContext(ctx))
		if err != nil {
			return "", fmt.Errorf("cloud: downloading %s: %v", fname, err)
		}
		if resp.StatusCode == http.StatusNotFound && i > 0 && strings.HasSuffix(fname, ".prj") {
			resp.Body.Close()
			continue // A shapefile does not need a projection file.
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return "", fmt.Errorf("cloud: downloading %s: %s", fname, resp.Status)
		}
		err = writeLocal(filepath.Join(dir, filepath.Base(fname)), resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, filepath.Base(fnames[0])), nil
}

func downloadBlob(ctx context.Context, path string) (string, error) {
	bucket, key, err := openObject(ctx, path)
	if err != nil {
		return "", err
	}
	dir, err := ioutil.TempDir("", "viewshed")
	if err != nil {
		return "", fmt.Errorf("cloud: creating download directory: %v", err)
	}
	fnames := ExpandShp(key)
	for i, key := range fnames {
		r, err := bucket.NewReader(ctx, key, nil)
		if err != nil && i > 0 && strings.HasSuffix(key, ".prj") {
			continue
		} else if err != nil {
			return "", fmt.Errorf("cloud: reading blob %s: %v", key, err)
		}
		err = writeLocal(filepath.Join(dir, filepath.Base(key)), r)
		r.Close()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, filepath.Base(fnames[0])), nil
}

func writeLocal(filename string, r io.Reader) error {
	w, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cloud: creating file for download: %v", err)
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: downloading %s: %v", filepath.Base(filename), err)
	}
	return w.Close()
}

// Uploader redirects outputs bound for blob storage to a local
// directory and uploads them when Upload is called.
type Uploader struct {
	// files holds pairs of local path and blob storage destination.
	files [][2]string
	dir   string
}

// MaybeUpload returns path unchanged if it is not a blob storage
// location. Otherwise it returns a local path to write the output to;
// the file will be uploaded to path by Upload.
func (u *Uploader) MaybeUpload(path string) (string, error) {
	if !IsBlob(path) {
		return path, nil
	}
	if u.dir == "" {
		dir, err := ioutil.TempDir("", "viewshed")
		if err != nil {
			return "", fmt.Errorf("cloud: creating upload directory: %v", err)
		}
		u.dir = dir
	}
	files := ExpandShp(path)
	for _, f := range files {
		u.files = append(u.files, [2]string{filepath.Join(u.dir, filepath.Base(f)), f})
	}
	return filepath.Join(u.dir, filepath.Base(files[0])), nil
}

// Upload copies the redirected outputs to blob storage and removes the
// local copies. Sidecar files that were not written are skipped.
func (u *Uploader) Upload(ctx context.Context) error {
	for _, f := range u.files {
		if err := upload(ctx, f[0], f[1]); err != nil {
			return err
		}
	}
	if u.dir != "" {
		return os.RemoveAll(u.dir)
	}
	return nil
}

func upload(ctx context.Context, local, dst string) error {
	r, err := os.Open(local)
	if os.IsNotExist(err) && filepath.Ext(local) != ".shp" {
		return nil
	} else if err != nil {
		return fmt.Errorf("cloud: opening file '%s' for upload: %v", local, err)
	}
	defer r.Close()
	bucket, key, err := openObject(ctx, dst)
	if err != nil {
		return fmt.Errorf("cloud: uploading %s: %v", dst, err)
	}
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("cloud: opening writer to upload file '%s': %v", dst, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: uploading file '%s' to '%s': %v", local, dst, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("cloud: uploading file '%s' to '%s': %v", local, dst, err)
	}
	return nil
}
