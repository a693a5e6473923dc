// Package mapa is the core library of the mapa education platform
// backend: bearer-token session authentication, the section/post/
// comment content hierarchy with its denormalized counters, and the
// media asset pipeline that moves uploads into durable object storage.
//
// The package is storage-agnostic. Persistence goes through the
// Repository interface (see repo/postgres and repo/memory) and media
// bytes through the BlobStore interface (see storage/s3, storage/fs
// and storage/memory). Construct a Service with New and functional
// options:
//
//	svc, err := mapa.New(
//		mapa.WithRepository(repo),
//		mapa.WithMediaPipeline(pipeline),
//		mapa.WithAuthenticator(auth),
//	)
package mapa
