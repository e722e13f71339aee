package domain

import (
	"github.com/datagrid-io/transferq/internal/api/dto"
	"github.com/datagrid-io/transferq/internal/api/model"
)

// ExpandTransfer turns one transfer spec into concrete file records: the
// cross product of sources and destinations, in source-major order, filtered
// down to the pairs with compatible protocols. Every produced file carries
// the transfer's optional attributes and the given index. A transfer whose
// cross product has no valid pair contributes nothing.
func ExpandTransfer(spec *dto.TransferSpec, index int) []model.File {
	var files []model.File

	for _, source := range spec.Sources {
		for _, destination := range spec.Destinations {
			if !ValidPair(source, destination) {
				continue
			}

			files = append(files, model.File{
				FileIndex:         index,
				FileState:         model.StateSubmitted,
				SourceSURL:        source,
				DestSURL:          destination,
				SourceSE:          StorageEndpoint(source),
				DestSE:            StorageEndpoint(destination),
				Checksum:          spec.Checksum,
				UserFilesize:      spec.Filesize,
				SelectionStrategy: spec.SelectionStrategy,
				FileMetadata:      model.JSONMap(spec.Metadata),
			})
		}
	}

	return files
}
