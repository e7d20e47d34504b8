package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mwantia/flashfs"
	"github.com/mwantia/flashfs/data"
	"github.com/mwantia/flashfs/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "flashfs",
		Short: "Inspect and manipulate a flashfs store image",
		Long: `flashfs mounts a store image (memory, sqlite, consul, s3 or postgres,
selected via --config) and runs one filesystem operation against it.

Example:
  flashfs --config flash.yaml mkdir /etc
  flashfs --config flash.yaml write /etc/motd < motd.txt
  flashfs --config flash.yaml ls /etc`,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML store configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(lsCmd(), catCmd(), writeCmd(), mkdirCmd(), rmCmd(),
		mvCmd(), statCmd(), lnCmd(), mountsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withMount mounts the configured store for the duration of one
// command.
func withMount(fn func(ctx context.Context, mt *flashfs.MountTable) error) error {
	ctx := context.Background()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	st, err := cfg.openStore()
	if err != nil {
		return err
	}

	opts := []flashfs.FileSystemOption{
		flashfs.WithLogLevel(log.Parse(cfg.LogLevel)),
	}
	if cfg.ReadOnly {
		opts = append(opts, flashfs.WithReadOnly())
	}
	if cfg.ChunkSize > 0 {
		opts = append(opts, flashfs.WithChunkSize(cfg.ChunkSize))
	}

	fs, err := flashfs.New("flash0", st, opts...)
	if err != nil {
		return err
	}

	mt := flashfs.NewMountTable()
	if err := mt.Mount(ctx, "/", fs); err != nil {
		return err
	}
	defer mt.Unmount(ctx, "/")

	return fn(ctx, mt)
}

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <path>",
		Short: "List directory contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMount(func(ctx context.Context, mt *flashfs.MountTable) error {
				handle, err := mt.Open(ctx, args[0], 0, 0)
				if err != nil {
					return err
				}
				defer handle.Close(ctx)

				for {
					entries, err := handle.ReadDirectory(ctx, 16*data.DirentSize)
					if err != nil {
						return err
					}
					if len(entries) == 0 {
						return nil
					}

					for _, entry := range entries {
						stat, err := mt.Stat(ctx, args[0]+"/"+entry.Name)
						if err != nil {
							fmt.Printf("?????????? %10s  %s\n", "?", entry.Name)
							continue
						}
						fmt.Printf("%s %10d  %s\n", stat.Mode, stat.Size, entry.Name)
					}
				}
			})
		},
	}
}

func catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Print file contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMount(func(ctx context.Context, mt *flashfs.MountTable) error {
				handle, err := mt.Open(ctx, args[0], 0, 0)
				if err != nil {
					return err
				}
				defer handle.Close(ctx)

				buf := make([]byte, 32*1024)
				for {
					n, err := handle.Read(ctx, buf)
					if err != nil {
						return err
					}
					if n == 0 {
						return nil
					}
					if _, err := os.Stdout.Write(buf[:n]); err != nil {
						return err
					}
				}
			})
		},
	}
}

func writeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write <path>",
		Short: "Write stdin to a file, creating it when missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMount(func(ctx context.Context, mt *flashfs.MountTable) error {
				content, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}

				err = mt.MakeNode(ctx, args[0], data.ModeTypeRegular|0644, 0)
				if err != nil && !errors.Is(err, data.ErrExist) {
					return err
				}

				handle, err := mt.Open(ctx, args[0], 0, 0)
				if err != nil {
					return err
				}
				defer handle.Close(ctx)

				if err := handle.Truncate(ctx, 0); err != nil {
					return err
				}
				if _, err := handle.Write(ctx, content); err != nil {
					return err
				}
				return handle.Sync(ctx)
			})
		},
	}
}

func mkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMount(func(ctx context.Context, mt *flashfs.MountTable) error {
				return mt.MakeNode(ctx, args[0], data.ModeTypeDirectory|0755, 0)
			})
		},
	}
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Remove a file or empty directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMount(func(ctx context.Context, mt *flashfs.MountTable) error {
				return mt.Remove(ctx, args[0])
			})
		},
	}
}

func mvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <old> <new>",
		Short: "Rename an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMount(func(ctx context.Context, mt *flashfs.MountTable) error {
				return mt.Rename(ctx, args[0], args[1])
			})
		},
	}
}

func statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Print the status record of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMount(func(ctx context.Context, mt *flashfs.MountTable) error {
				stat, err := mt.Stat(ctx, args[0])
				if err != nil {
					return err
				}

				fmt.Printf("id:         %d\n", stat.ID)
				fmt.Printf("mode:       %s (%04o)\n", stat.Mode, stat.Mode.Perm())
				fmt.Printf("links:      %d\n", stat.LinkCount)
				fmt.Printf("size:       %d\n", stat.Size)
				fmt.Printf("blocks:     %d x %d\n", stat.Blocks, stat.BlockSize)
				fmt.Printf("accessed:   %s\n", stat.AccessTime.Format("2006-01-02 15:04:05"))
				fmt.Printf("modified:   %s\n", stat.ModifyTime.Format("2006-01-02 15:04:05"))
				fmt.Printf("changed:    %s\n", stat.ChangeTime.Format("2006-01-02 15:04:05"))
				return nil
			})
		},
	}
}

func lnCmd() *cobra.Command {
	var symbolic bool

	cmd := &cobra.Command{
		Use:   "ln <target> <path>",
		Short: "Create a hardlink (or symlink with -s)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMount(func(ctx context.Context, mt *flashfs.MountTable) error {
				if symbolic {
					return mt.MakeSymlink(ctx, args[1], args[0])
				}
				return mt.MakeHardlink(ctx, args[1], args[0])
			})
		},
	}

	cmd.Flags().BoolVarP(&symbolic, "symbolic", "s", false, "Create a symbolic link")
	return cmd
}

func mountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mounts",
		Short: "List active mounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMount(func(ctx context.Context, mt *flashfs.MountTable) error {
				for _, info := range mt.Mounts() {
					mode := "rw"
					if info.ReadOnly {
						mode = "ro"
					}
					fmt.Printf("%-20s %s %s\n", info.Path, info.Device, mode)
				}
				return nil
			})
		},
	}
}
