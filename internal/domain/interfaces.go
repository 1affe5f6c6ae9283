package domain

import "context"

// CatalogClient lists servers and the images each one offers.
// Implementations wrap transport failures in ErrCatalogUnavailable.
type CatalogClient interface {
	ListServers(ctx context.Context) ([]Server, error)
	ListImages(ctx context.Context, server Server) ([]ImageEntry, error)
}

// TransferClient moves one image to local storage.
// onProgress may be nil. Failures should be returned as *TransferError.
type TransferClient interface {
	Download(ctx context.Context, entry ImageEntry, onProgress ProgressFunc) (DownloadResult, error)
}

// Source is a backend that can serve both the catalog and the transfers
type Source interface {
	CatalogClient
	TransferClient
}
