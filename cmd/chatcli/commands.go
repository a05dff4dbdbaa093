package main

import (
	"fmt"
	"ichat_backend/internal/syncclient"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	groupNameFlag = "name"
	groupDescFlag = "description"
	sendFileFlag  = "file"
	groupConvFlag = "conversation"
)

var registerCmd = &cobra.Command{
	Use:   "register <full name> <email> <password>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		user, err := newClient().Register(ctx, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("registered user %d (%s)\n", user.ID, user.Email)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email> <password>",
	Short: "Log in and save the session token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		token, err := newClient().Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if err := saveToken(token); err != nil {
			return err
		}
		fmt.Println("logged in")
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search users by name or email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		users, err := newClient().SearchUsers(ctx, args[0])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tSTATUS")
		for _, u := range users {
			status := string(u.RelationshipStatus)
			if u.Incoming && status != "" {
				status += " (incoming #" + fmt.Sprint(u.RelationshipID) + ")"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.FullName, u.Email, status)
		}
		return w.Flush()
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect <user id>",
	Short: "Send a connection request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		rel, err := newClient().RequestConnection(ctx, userID)
		if err != nil {
			return err
		}
		fmt.Printf("request %d sent\n", rel.ID)
		return nil
	},
}

var acceptCmd = &cobra.Command{
	Use:   "accept <request id>",
	Short: "Accept an incoming connection request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		requestID, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := newClient().AcceptConnection(ctx, requestID); err != nil {
			return err
		}
		fmt.Println("connection accepted")
		return nil
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List incoming connection requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		reqs, err := newClient().ListPending(ctx)
		if err != nil {
			return err
		}
		for _, r := range reqs {
			fmt.Printf("#%d from %s <%s>\n", r.ID, r.User.FullName, r.User.Email)
		}
		return nil
	},
}

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List accepted connections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		users, err := newClient().ListConnections(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Printf("%d\t%s\n", u.ID, u.FullName)
		}
		return nil
	},
}

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List conversations, most recently active first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		list, err := newClient().ListConversations(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLAST MESSAGE")
		for _, c := range list {
			last := ""
			if c.LastMessage != nil {
				last = *c.LastMessage
			}
			if last == "" && c.LastMessageFile != nil {
				last = "[" + *c.LastMessageFile + "]"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.DisplayName, last)
		}
		return w.Flush()
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat <user id>",
	Short: "Open the one-to-one conversation with a connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		convID, err := newClient().StartDirect(ctx, userID)
		if err != nil {
			return err
		}
		fmt.Printf("conversation %d\n", convID)
		return nil
	},
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Group commands",
}

var groupCreateCmd = &cobra.Command{
	Use:   "create <member id>...",
	Short: "Create a group with the given members",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		conv, err := newClient().CreateGroup(ctx, viper.GetString(groupNameFlag), viper.GetString(groupDescFlag), ids)
		if err != nil {
			return err
		}
		groupID := uint(0)
		if conv.GroupID != nil {
			groupID = *conv.GroupID
		}
		fmt.Printf("group %d, conversation %d\n", groupID, conv.ID)
		return nil
	},
}

var groupAddCmd = &cobra.Command{
	Use:   "add <group id> <member id>...",
	Short: "Add members to a group you administer",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupID, err := parseID(args[0])
		if err != nil {
			return err
		}
		ids, err := parseIDs(args[1:])
		if err != nil {
			return err
		}
		convID := viper.GetUint(groupConvFlag)
		if convID == 0 {
			return fmt.Errorf("--%s is required", groupConvFlag)
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		added, err := newClient().AddMembers(ctx, groupID, convID, ids)
		if err != nil {
			return err
		}
		fmt.Printf("%d member(s) added\n", added)
		return nil
	},
}

var groupRemoveCmd = &cobra.Command{
	Use:   "remove <group id> <member id>",
	Short: "Remove a member from a group you administer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupID, err := parseID(args[0])
		if err != nil {
			return err
		}
		userID, err := parseID(args[1])
		if err != nil {
			return err
		}
		convID := viper.GetUint(groupConvFlag)
		if convID == 0 {
			return fmt.Errorf("--%s is required", groupConvFlag)
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := newClient().RemoveMember(ctx, groupID, convID, userID); err != nil {
			return err
		}
		fmt.Println("member removed")
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <conversation id> [text]",
	Short: "Send a message, optionally with an attachment",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		convID, err := parseID(args[0])
		if err != nil {
			return err
		}
		text := strings.Join(args[1:], " ")

		var file *syncclient.File
		if path := viper.GetString(sendFileFlag); path != "" {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			file = &syncclient.File{Name: filepath.Base(path), Reader: f}
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()
		msg, err := newClient().SendMessage(ctx, convID, text, file)
		if err != nil {
			return err
		}
		fmt.Printf("message %d sent\n", msg.ID)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <message id>",
	Short: "Delete a message you sent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msgID, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := newClient().DeleteMessage(ctx, msgID); err != nil {
			return err
		}
		fmt.Println("message deleted")
		return nil
	},
}

func init() {
	groupCreateCmd.Flags().String(groupNameFlag, "",
		"The name of the new group.")
	bindFlagHelper(groupNameFlag, groupCreateCmd)
	groupCreateCmd.Flags().String(groupDescFlag, "",
		"Optional group description.")
	bindFlagHelper(groupDescFlag, groupCreateCmd)

	groupCmd.PersistentFlags().Uint(groupConvFlag, 0,
		"Conversation id of the group.")
	bindPersistentFlag(groupConvFlag, groupCmd)

	sendCmd.Flags().String(sendFileFlag, "",
		"Path of a file to attach.")
	bindFlagHelper(sendFileFlag, sendCmd)

	groupCmd.AddCommand(groupCreateCmd, groupAddCmd, groupRemoveCmd)
	rootCmd.AddCommand(registerCmd, loginCmd, searchCmd, connectCmd, acceptCmd,
		pendingCmd, connectionsCmd, conversationsCmd, chatCmd, groupCmd,
		sendCmd, deleteCmd)
}
