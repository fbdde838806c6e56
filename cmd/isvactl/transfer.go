package main

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cuemby/isvactl/pkg/blob"
	"github.com/cuemby/isvactl/pkg/result"
	"github.com/cuemby/isvactl/pkg/types"
)

// localFs is replaced in tests
var localFs = afero.NewOsFs

func newTransferSession(cmd *cobra.Command, name, operation string) (*session, *blob.Manager, error) {
	s, err := newSession(cmd, name, operation)
	if err != nil {
		return nil, nil, err
	}
	return s, blob.NewManager(s.client, localFs(), s.logger), nil
}

func newSharedVolumesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shared-volumes",
		Short: "Transfer files to and from the shared volume",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the shared volume, or one category of it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			category, _ := cmd.Flags().GetString("category")
			if category != "" {
				if err := blob.CheckCategory(category); err != nil {
					return err
				}
			}
			_, m, err := newTransferSession(cmd, "shared_volumes", string(types.OperationGathered))
			if err != nil {
				return err
			}
			entries, err := m.ListSharedVolumes(cmd.Context(), category)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result.Gathered(entries))
		},
	}
	list.Flags().String("category", "", "Category to list (fixpacks, snapshots, support)")

	download := &cobra.Command{
		Use:   "download",
		Short: "Download a shared volume file unless the local copy matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := blob.DownloadRequest{}
			req.Category, _ = cmd.Flags().GetString("category")
			req.Name, _ = cmd.Flags().GetString("name")
			req.Dest, _ = cmd.Flags().GetString("dest")
			if err := blob.CheckCategory(req.Category); err != nil {
				return err
			}

			s, m, err := newTransferSession(cmd, "shared_volumes", "download")
			if err != nil {
				return err
			}
			res, err := m.DownloadShared(cmd.Context(), []blob.DownloadRequest{req}, s.dryRun)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	download.Flags().String("category", "", "Category of the file (fixpacks, snapshots, support)")
	download.Flags().String("name", "", "Name of the file in the category")
	download.Flags().String("dest", "", "Local destination path")
	for _, f := range []string{"category", "name", "dest"} {
		_ = download.MarkFlagRequired(f)
	}

	upload := &cobra.Command{
		Use:   "upload",
		Short: "Upload a file to the shared volume unless the remote copy matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := blob.UploadRequest{}
			req.Category, _ = cmd.Flags().GetString("category")
			req.Name, _ = cmd.Flags().GetString("name")
			req.Src, _ = cmd.Flags().GetString("src")
			req.Overwrite, _ = cmd.Flags().GetBool("overwrite")
			if err := blob.CheckCategory(req.Category); err != nil {
				return err
			}

			s, m, err := newTransferSession(cmd, "shared_volumes", "upload")
			if err != nil {
				return err
			}
			res, err := m.UploadShared(cmd.Context(), []blob.UploadRequest{req}, s.dryRun)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	upload.Flags().String("category", "", "Category to upload into (fixpacks, snapshots, support)")
	upload.Flags().String("name", "", "Remote file name (defaults to the base name of --src)")
	upload.Flags().String("src", "", "Local file to upload")
	upload.Flags().Bool("overwrite", false, "Replace a remote file with different contents")
	_ = upload.MarkFlagRequired("category")
	_ = upload.MarkFlagRequired("src")

	cmd.AddCommand(list, download, upload)
	return cmd
}

func newDownloadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "downloads",
		Short: "Fetch files published in the appliance downloads area",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the downloads area",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, m, err := newTransferSession(cmd, "downloads", string(types.OperationGathered))
			if err != nil {
				return err
			}
			entries, err := m.ListDownloads(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result.Gathered(entries))
		},
	}

	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Copy a download to a local path when its contents differ",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := blob.FetchRequest{}
			req.Path, _ = cmd.Flags().GetString("path")
			req.Dest, _ = cmd.Flags().GetString("dest")

			s, m, err := newTransferSession(cmd, "downloads", "fetch")
			if err != nil {
				return err
			}
			res, err := m.FetchDownloads(cmd.Context(), []blob.FetchRequest{req}, s.dryRun)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	fetch.Flags().String("path", "", "Path in the downloads area (e.g. /agents/installer.zip)")
	fetch.Flags().String("dest", "", "Local destination path")
	_ = fetch.MarkFlagRequired("path")
	_ = fetch.MarkFlagRequired("dest")

	cmd.AddCommand(list, fetch)
	return cmd
}
