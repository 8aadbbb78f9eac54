/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/imgshare/apiserver/internal/client"
	"github.com/imgshare/apiserver/types"
	"github.com/spf13/cobra"
)

var (
	clientServerURL string
	clientSession   string
	clientPassword  string
	uploadName      string
)

// clientCmd represents the client command.
var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Talk to an imgshare server",
}

var clientRegisterCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create an account and store the session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newAPIClient().Register(cmd.Context(), args[0], clientPassword)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), session.Message)
		return nil
	},
}

var clientLoginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and store the session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newAPIClient().Login(cmd.Context(), args[0], clientPassword)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), session.Message)
		return nil
	},
}

var clientLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return newAPIClient().Logout()
	},
}

var clientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every image in the gallery",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gallery := client.NewGallery(newAPIClient())
		gallery.Load(cmd.Context())
		return printGallery(cmd.OutOrStdout(), gallery)
	},
}

var clientSearchCmd = &cobra.Command{
	Use:   "search <name>",
	Short: "List images whose name contains the given text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gallery := client.NewGallery(newAPIClient())
		gallery.Search(cmd.Context(), args[0])
		return printGallery(cmd.OutOrStdout(), gallery)
	},
}

var clientUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a PNG or JPEG image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		name := uploadName
		if name == "" {
			base := filepath.Base(args[0])
			name = base[:len(base)-len(filepath.Ext(base))]
		}

		uploaded, err := newAPIClient().UploadImage(cmd.Context(), name, args[0], f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", uploaded.ID, uploaded.Name, uploaded.Src)
		return nil
	},
}

var clientRenameCmd = &cobra.Command{
	Use:   "rename <image-id> <name>",
	Short: "Rename an image you own",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newAPIClient().RenameImage(cmd.Context(), args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.AddCommand(
		clientRegisterCmd,
		clientLoginCmd,
		clientLogoutCmd,
		clientListCmd,
		clientSearchCmd,
		clientUploadCmd,
		clientRenameCmd,
	)

	clientCmd.PersistentFlags().StringVar(&clientServerURL, "server", "http://localhost:3000", "base URL of the imgshare server")
	clientCmd.PersistentFlags().StringVar(&clientSession, "session", defaultSessionPath(), "file holding the session token")

	for _, c := range []*cobra.Command{clientRegisterCmd, clientLoginCmd} {
		c.Flags().StringVarP(&clientPassword, "password", "p", "", "account password")
		_ = c.MarkFlagRequired("password")
	}
	clientUploadCmd.Flags().StringVarP(&uploadName, "name", "n", "", "display name (defaults to the file name)")
}

func newAPIClient() *client.Client {
	return client.New(clientServerURL, client.WithTokenStore(client.FileTokenStore{Path: clientSession}))
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".imgshare-session"
	}
	return filepath.Join(dir, "imgshare", "session")
}

func printGallery(out io.Writer, gallery *client.Gallery) error {
	images, err := gallery.Images()
	if err != nil {
		return err
	}
	return writeImageTable(out, images)
}

func writeImageTable(out io.Writer, images []types.ImageView) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAUTHOR\tSRC")
	for _, image := range images {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", image.ID, image.Name, image.Author.Name, image.Src)
	}
	return tw.Flush()
}
